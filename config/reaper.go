package config

import (
	"fmt"
	"time"
)

// ReaperConfig holds settings for the stale job reaper.
type ReaperConfig struct {
	Interval        time.Duration `env:"REAPER_INTERVAL" envDefault:"30s"`
	HeartbeatMaxAge time.Duration `env:"REAPER_HEARTBEAT_MAX_AGE" envDefault:"2m"`
	MaxRetries      int           `env:"REAPER_MAX_RETRIES" envDefault:"3"`
}

// Sanitize validates reaper configuration.
func (c *ReaperConfig) Sanitize() error {
	if c.Interval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be positive, got %s", c.Interval)
	}
	if c.HeartbeatMaxAge <= 0 {
		return fmt.Errorf("REAPER_HEARTBEAT_MAX_AGE must be positive, got %s", c.HeartbeatMaxAge)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("REAPER_MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	return nil
}
