package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Workers int           `env:"TEST_WORKERS" envDefault:"4"`
	Timeout time.Duration `env:"TEST_TIMEOUT" envDefault:"30m"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Workers != 4 {
		t.Fatalf("expected default workers 4, got %d", cfg.Workers)
	}
	if cfg.Timeout != 30*time.Minute {
		t.Fatalf("expected default timeout 30m, got %v", cfg.Timeout)
	}
}

func TestParseEnvUsesPrefix(t *testing.T) {
	t.Setenv("TEST_WORKERS", "9")
	t.Setenv("TURNOUT_TEST_WORKERS", "2")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Workers != 2 {
		t.Fatalf("expected prefixed workers 2, got %d", cfg.Workers)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TURNOUT_TEST_WORKERS", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
