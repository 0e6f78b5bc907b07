// Package config defines service configuration and its loading from
// defaults, an optional YAML file and COMPETA_ environment variables.
package config

import (
	"context"
	"fmt"
	"time"
)

// Store drivers accepted by DBDriver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// DBDriver selects the evaluation store: memory, sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is passed to the SQL driver; empty uses the driver default.
	DBDSN string `koanf:"db_dsn"`

	// RubricPath points to a YAML rubric; empty uses the embedded default.
	RubricPath string `koanf:"rubric_path"`

	// SessionCapacity bounds how many authors hold a capture session.
	SessionCapacity int `koanf:"session_capacity"`

	// ReconcileWorkers bounds concurrent conditional updates per reconcile.
	ReconcileWorkers int `koanf:"reconcile_workers"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9090",
		DBDriver:         DriverMemory,
		SessionCapacity:  10_000,
		ReconcileWorkers: 4,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.SessionCapacity <= 0:
		return fmt.Errorf("session_capacity must be positive: %w", ErrInvalidConfig)
	case c.ReconcileWorkers <= 0:
		return fmt.Errorf("reconcile_workers must be positive: %w", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("db_driver %q: %w", c.DBDriver, ErrInvalidConfig)
	}
	return nil
}
