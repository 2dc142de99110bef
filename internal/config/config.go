// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load() layers defaults, an optional YAML file and environment variables.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UpstreamBaseURL is the base URL of the combat-analysis services that
	// serve per-category datasets, roster and gold pot data.
	UpstreamBaseURL string `koanf:"upstream_base_url"`

	// FetchTimeoutMS bounds a single upstream dataset request.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// FetchConcurrency bounds the category fetch fan-out per event.
	FetchConcurrency int `koanf:"fetch_concurrency"`

	// DBPath locates the SQLite database holding snapshots and manual rewards.
	DBPath string `koanf:"db_path"`

	// BaseAward is the flat point award for every confirmed roster player.
	BaseAward int `koanf:"base_award"`

	// DefaultRaidleaderPct is used when the upstream raidleader-cut
	// endpoint is unavailable. Valid range 0-10.
	DefaultRaidleaderPct int `koanf:"default_raidleader_pct"`

	// StreamHeartbeatSeconds sets the SSE keep-alive comment interval.
	StreamHeartbeatSeconds int `koanf:"stream_heartbeat_seconds"`

	// StreamBufferSize bounds the per-subscriber notification buffer.
	StreamBufferSize int `koanf:"stream_buffer_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9090",
		UpstreamBaseURL:        "http://localhost:9180",
		FetchTimeoutMS:         5000,
		FetchConcurrency:       runtime.NumCPU() * 2,
		DBPath:                 "raidledger.db",
		BaseAward:              100,
		DefaultRaidleaderPct:   4,
		StreamHeartbeatSeconds: 25,
		StreamBufferSize:       16,
	}
}
