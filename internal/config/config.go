// Package config defines service configuration and its loader.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of result workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the submission id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxResultsLimit caps GET /rounds/{round_id}/results?limit.
	MaxResultsLimit int `koanf:"max_results_limit"`

	// RequireConfirmation rejects submissions carrying a warning until the
	// client resends them with confirmed set.
	RequireConfirmation bool `koanf:"require_confirmation"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           100_000,
		WorkerCount:         runtime.NumCPU() * 4,
		DedupeSize:          500_000,
		MaxResultsLimit:     500,
		RequireConfirmation: true,
	}
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.QueueSize <= 0:
		return invalid("queue_size must be positive")
	case c.WorkerCount <= 0:
		return invalid("worker_count must be positive")
	case c.MaxResultsLimit <= 0:
		return invalid("max_results_limit must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log_level must be one of debug, info, warn, error")
	}
	return nil
}
