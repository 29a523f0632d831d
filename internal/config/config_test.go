package config_test

import (
	"errors"
	"testing"

	"StokVault/internal/config"
)

// ============================================================================
// Test: Defaults and Validation
// ============================================================================

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("http addr default: got %q", cfg.HTTPAddr)
	}
	if cfg.HealthFactorThresholdBps != 9_500 {
		t.Errorf("threshold default: got %d", cfg.HealthFactorThresholdBps)
	}
	if cfg.PenaltyRateBps != 2_000 {
		t.Errorf("penalty rate default: got %d", cfg.PenaltyRateBps)
	}
	if cfg.PenaltyMode != "dynamic" {
		t.Errorf("penalty mode default: got %q", cfg.PenaltyMode)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STOK_PENALTY_RATE_BPS", "1500")
	t.Setenv("STOK_PENALTY_MODE", "fixed")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PenaltyRateBps != 1_500 {
		t.Errorf("env override: got %d, want 1500", cfg.PenaltyRateBps)
	}
	if cfg.PenaltyMode != "fixed" {
		t.Errorf("env override: got %q, want fixed", cfg.PenaltyMode)
	}
}

func TestValidate_Bounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"round too short", func(c *config.Config) { c.RoundDurationSeconds = 60 }},
		{"round too long", func(c *config.Config) { c.RoundDurationSeconds = 400 * 24 * 60 * 60 }},
		{"threshold zero", func(c *config.Config) { c.HealthFactorThresholdBps = 0 }},
		{"threshold above whole", func(c *config.Config) { c.HealthFactorThresholdBps = 10_001 }},
		{"penalty rate negative", func(c *config.Config) { c.PenaltyRateBps = -1 }},
		{"penalty mode unknown", func(c *config.Config) { c.PenaltyMode = "harsh" }},
		{"empty addr", func(c *config.Config) { c.HTTPAddr = "" }},
		{"zero event buffer", func(c *config.Config) { c.EventBufferSize = 0 }},
	}

	for _, tc := range cases {
		cfg := config.New()
		tc.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}
}
