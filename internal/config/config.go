// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() defaults; Load layers file and env on top.
// - External errors are wrapped via this package's error helpers.
package config

import "context"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SampleQueueSize bounds each session's in-memory sample queue.
	SampleQueueSize int `koanf:"sample_queue_size"`

	// DedupeSize sets the size of the ingest batch-id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxSessionListLimit caps GET /sessions?limit.
	MaxSessionListLimit int `koanf:"max_session_list_limit"`

	// IMUSampleRateHz is the inertial sensor's nominal rate, used to derive
	// the step detector's filter coefficients. Must be positive.
	IMUSampleRateHz float64 `koanf:"imu_sample_rate_hz"`

	// SwayWindowSec is the balance analyzer's sliding window.
	SwayWindowSec float64 `koanf:"sway_window_sec"`

	// HarmonicFundamentalHz is the assumed stride fundamental for the
	// harmonic-ratio decomposition. A tunable, not a constant: the 1 Hz
	// default misestimates harmonic bins at atypical cadences.
	HarmonicFundamentalHz float64 `koanf:"harmonic_fundamental_hz"`

	// MQTT publisher settings. Disabled by default; never required.
	MQTTEnabled     bool   `koanf:"mqtt_enabled"`
	MQTTBroker      string `koanf:"mqtt_broker"`
	MQTTTopicPrefix string `koanf:"mqtt_topic_prefix"`

	// ModelURL enables the external fall-risk model when non-empty. The
	// rule-based scorer still runs either way; the model may only override
	// the composite score.
	ModelURL string `koanf:"model_url"`

	// ModelTimeoutMs bounds each model call.
	ModelTimeoutMs int `koanf:"model_timeout_ms"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		SampleQueueSize:       4096,
		DedupeSize:            50_000,
		MaxSessionListLimit:   100,
		IMUSampleRateHz:       100,
		SwayWindowSec:         5,
		HarmonicFundamentalHz: 1.0,
		MQTTEnabled:           false,
		MQTTBroker:            "tcp://localhost:1883",
		MQTTTopicPrefix:       "stride/metrics",
		ModelURL:              "",
		ModelTimeoutMs:        200,
	}
}
