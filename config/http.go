package config

import (
	"fmt"
	"time"
)

// HTTPConfig holds settings for the HTTP API server.
type HTTPConfig struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// SSERetry is the reconnect delay advertised to event stream
	// clients; SSEPollInterval is how often the stream handler checks
	// the store for new events.
	SSERetry        time.Duration `env:"SSE_RETRY" envDefault:"3s"`
	SSEPollInterval time.Duration `env:"SSE_POLL_INTERVAL" envDefault:"1s"`
}

// Sanitize validates HTTP configuration.
func (c *HTTPConfig) Sanitize() error {
	if c.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.SSEPollInterval <= 0 {
		return fmt.Errorf("SSE_POLL_INTERVAL must be positive, got %s", c.SSEPollInterval)
	}
	if c.SSERetry <= 0 {
		return fmt.Errorf("SSE_RETRY must be positive, got %s", c.SSERetry)
	}
	return nil
}
