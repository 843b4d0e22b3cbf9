package config

import (
	"fmt"
	"time"
)

// WorkerConfig holds settings for the job workers.
type WorkerConfig struct {
	Count             int           `env:"WORKER_COUNT" envDefault:"2"`
	PollInterval      time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	HeartbeatInterval time.Duration `env:"WORKER_HEARTBEAT_INTERVAL" envDefault:"30s"`
}

// Sanitize validates worker configuration.
func (c *WorkerConfig) Sanitize() error {
	if c.Count < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.Count)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("WORKER_HEARTBEAT_INTERVAL must be positive, got %s", c.HeartbeatInterval)
	}
	return nil
}
