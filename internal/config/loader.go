package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	minRoundDurationSeconds = 24 * 60 * 60
	maxRoundDurationSeconds = 365 * 24 * 60 * 60
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if STOK_CONFIG is set
//  3. env (prefix STOK_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("STOK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: STOK_HTTP_ADDR, STOK_PENALTY_RATE_BPS, ...
	// mapped to the flat koanf keys on the struct.
	envProvider := env.Provider("STOK_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "stok_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the recognized option bounds.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" || c.MetricsAddr == "" {
		return fmt.Errorf("%w: listen addresses must not be empty", ErrInvalidConfig)
	}
	if c.RoundDurationSeconds < minRoundDurationSeconds || c.RoundDurationSeconds > maxRoundDurationSeconds {
		return fmt.Errorf("%w: round_duration_seconds %d outside [1 day, 365 days]", ErrInvalidConfig, c.RoundDurationSeconds)
	}
	if c.HealthFactorThresholdBps <= 0 || c.HealthFactorThresholdBps > 10_000 {
		return fmt.Errorf("%w: health_factor_threshold_bps %d outside (0, 10000]", ErrInvalidConfig, c.HealthFactorThresholdBps)
	}
	if c.PenaltyRateBps < 0 || c.PenaltyRateBps > 10_000 {
		return fmt.Errorf("%w: penalty_rate_bps %d outside [0, 10000]", ErrInvalidConfig, c.PenaltyRateBps)
	}
	if c.MinStake < 0 {
		return fmt.Errorf("%w: min_stake must not be negative", ErrInvalidConfig)
	}
	if c.PenaltyMode != "dynamic" && c.PenaltyMode != "fixed" {
		return fmt.Errorf("%w: penalty_mode %q (want dynamic or fixed)", ErrInvalidConfig, c.PenaltyMode)
	}
	if c.EventBufferSize <= 0 || c.PersistBatchSize <= 0 {
		return fmt.Errorf("%w: buffer sizes must be positive", ErrInvalidConfig)
	}
	return nil
}
