// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration for the matcher service.
type Config struct {
	Port        string `envconfig:"MATCHER_PORT" default:"8083"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" required:"true"`

	// Re-match sweep
	SweepIntervalHours int `envconfig:"SWEEP_INTERVAL_HOURS" default:"6"`
	SweepWorkers       int `envconfig:"SWEEP_WORKERS" default:"4"`

	// Store retry policy
	StoreMaxAttempts int `envconfig:"STORE_MAX_ATTEMPTS" default:"4"`
	StorePageSize    int `envconfig:"STORE_PAGE_SIZE" default:"200"`

	// Notifications outbox
	OutboxPollSeconds int `envconfig:"OUTBOX_POLL_SECONDS" default:"10"`
	OutboxBatchSize   int `envconfig:"OUTBOX_BATCH_SIZE" default:"25"`
	OutboxMaxAttempts int `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"5"`
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.SweepIntervalHours < 1 {
		return nil, fmt.Errorf("SWEEP_INTERVAL_HOURS must be a positive integer, got %d", cfg.SweepIntervalHours)
	}
	if cfg.SweepWorkers < 1 {
		return nil, fmt.Errorf("SWEEP_WORKERS must be a positive integer, got %d", cfg.SweepWorkers)
	}
	if cfg.OutboxPollSeconds < 1 {
		return nil, fmt.Errorf("OUTBOX_POLL_SECONDS must be a positive integer, got %d", cfg.OutboxPollSeconds)
	}

	return &cfg, nil
}
