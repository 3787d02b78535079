// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/citruscircuits/calcserver/internal/domain/scoring"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the document store: memory or mongo.
	StoreBackend string `koanf:"store_backend"`

	MongoURI       string `koanf:"mongo_uri"`
	MongoDatabase  string `koanf:"mongo_database"`
	MongoTimeoutMS int    `koanf:"mongo_timeout_ms"`

	// QueueSize bounds the in-memory run queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of run workers.
	WorkerCount int `koanf:"worker_count"`

	// PendingSize bounds the set of calculators with a queued run.
	PendingSize int `koanf:"pending_size"`

	// RetryInitialMS and RetryMaxElapsedMS shape the backoff for failed
	// queued runs. RetryMaxElapsedMS of 0 disables retries.
	RetryInitialMS    int `koanf:"retry_initial_ms"`
	RetryMaxElapsedMS int `koanf:"retry_max_elapsed_ms"`

	// RunTimeoutMS bounds one calculator run.
	RunTimeoutMS int `koanf:"run_timeout_ms"`

	// RunOnStart runs every calculator once at startup.
	RunOnStart bool `koanf:"run_on_start"`

	// ScheduleCollection lists the alliances the predictor scores.
	ScheduleCollection string `koanf:"schedule_collection"`

	// RulesPreset picks the base rule table: manual2020 or legacy.
	RulesPreset string `koanf:"rules_preset"`

	// PointValues and Thresholds override the season's game rules by key,
	// e.g. climb: 25 or climb_rp: 65.
	PointValues map[string]float64 `koanf:"point_values"`
	Thresholds  map[string]float64 `koanf:"thresholds"`
}

// New creates a Config holding defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		StoreBackend:       BackendMemory,
		MongoDatabase:      "calcserver",
		MongoTimeoutMS:     10_000,
		QueueSize:          1024,
		WorkerCount:        2,
		PendingSize:        1024,
		RetryInitialMS:     200,
		RetryMaxElapsedMS:  30_000,
		RunTimeoutMS:       120_000,
		ScheduleCollection: "match_schedule",
		RulesPreset:        scoring.PresetManual2020,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains([]string{BackendMemory, BackendMongo}, c.StoreBackend):
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownBackend, c.StoreBackend)
	case c.StoreBackend == BackendMongo && c.MongoURI == "":
		return fmt.Errorf("%w: mongo_uri is required for the mongo backend", ErrInvalidConfig)
	case c.StoreBackend == BackendMongo && c.MongoDatabase == "":
		return fmt.Errorf("%w: mongo_database is required for the mongo backend", ErrInvalidConfig)
	case c.QueueSize <= 0, c.WorkerCount <= 0, c.PendingSize <= 0:
		return fmt.Errorf("%w: queue_size, worker_count and pending_size must be positive", ErrInvalidConfig)
	case c.RetryInitialMS <= 0, c.RetryMaxElapsedMS < 0, c.RunTimeoutMS <= 0, c.MongoTimeoutMS <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.ScheduleCollection == "":
		return fmt.Errorf("%w: schedule_collection must not be empty", ErrInvalidConfig)
	}
	if _, err := scoring.PresetRules(c.RulesPreset); err != nil {
		return fmt.Errorf("%w: rules_preset: %w", ErrInvalidConfig, err)
	}
	if err := scoring.ValidateTables(c.PointValues, c.Thresholds); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// RetryInitial returns RetryInitialMS as a duration.
func (c *Config) RetryInitial() time.Duration {
	return time.Duration(c.RetryInitialMS) * time.Millisecond
}

// RetryMaxElapsed returns RetryMaxElapsedMS as a duration.
func (c *Config) RetryMaxElapsed() time.Duration {
	return time.Duration(c.RetryMaxElapsedMS) * time.Millisecond
}

// RunTimeout returns RunTimeoutMS as a duration.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMS) * time.Millisecond
}

// MongoTimeout returns MongoTimeoutMS as a duration.
func (c *Config) MongoTimeout() time.Duration {
	return time.Duration(c.MongoTimeoutMS) * time.Millisecond
}
