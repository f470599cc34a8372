package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if STRIDE_CONFIG is set
//  3. env (prefix STRIDE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("STRIDE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrapLoad(err)
		}
	}

	// Environment variables: STRIDE_ADDR, STRIDE_SAMPLE_QUEUE_SIZE, ...
	// Map env keys like STRIDE_IMU_SAMPLE_RATE_HZ -> imu_sample_rate_hz;
	// underscores are preserved to match koanf tags on the struct.
	envProvider := env.Provider("STRIDE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "stride_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, wrapLoad(err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, wrapLoad(err)
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.IMUSampleRateHz <= 0 {
		return nil, errors.New("imu_sample_rate_hz must be positive")
	}
	if cfg.HarmonicFundamentalHz <= 0 {
		return nil, errors.New("harmonic_fundamental_hz must be positive")
	}
	if cfg.ModelURL != "" && cfg.ModelTimeoutMs <= 0 {
		return nil, errors.New("model_timeout_ms must be positive when model_url is set")
	}
	return &cfg, nil
}
