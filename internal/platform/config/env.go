// Package config loads process configuration and reports fatal CLI errors.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every env tag, so a field tagged `env:"VOTE_LOG"`
// reads TURNOUT_VOTE_LOG.
const EnvPrefix = "TURNOUT_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
