package config

import (
	"fmt"
	"time"
)

// DatabaseConfig holds settings for the embedded SQLite store.
type DatabaseConfig struct {
	// Path is the database file location. ":memory:" keeps everything
	// in process, which is only useful for tests.
	Path        string        `env:"DB_PATH" envDefault:"docflow.db"`
	BusyTimeout time.Duration `env:"DB_BUSY_TIMEOUT" envDefault:"5s"`
}

// Sanitize validates database configuration.
func (c *DatabaseConfig) Sanitize() error {
	if c.Path == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.BusyTimeout <= 0 {
		return fmt.Errorf("DB_BUSY_TIMEOUT must be positive, got %s", c.BusyTimeout)
	}
	return nil
}
