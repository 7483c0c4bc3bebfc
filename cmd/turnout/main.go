// Package main reconciles the statewide vote log against the registration
// census and writes turnout buckets.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	platformcmd "github.com/louisbranch/turnout/internal/platform/cmd"
	"github.com/louisbranch/turnout/internal/platform/config"
	"github.com/louisbranch/turnout/internal/tools/turnout"
)

func main() {
	cfg, err := turnout.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceTurnout, func(ctx context.Context) error {
		return turnout.Run(ctx, cfg, os.Stdout, os.Stderr)
	}); err != nil {
		config.Exitf("Error: %v", err)
	}
}
