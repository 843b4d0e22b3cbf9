// Package config defines the application configuration loaded from the
// environment.
package config

import "fmt"

// AppConfig is the root configuration for all docflow services.
type AppConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Services ServicesConfig
	Database DatabaseConfig
	Storage  StorageConfig
	HTTP     HTTPConfig
	Worker   WorkerConfig
	Reaper   ReaperConfig
}

// IsDev reports whether the app runs in the development environment.
func (c *AppConfig) IsDev() bool {
	return c.Env == "development"
}

// Sanitize validates the configuration after parsing.
func (c *AppConfig) Sanitize() error {
	switch c.Env {
	case "development", "test", "production":
	default:
		return fmt.Errorf("invalid APP_ENV %q", c.Env)
	}

	for _, s := range []interface{ Sanitize() error }{
		&c.Services, &c.Database, &c.Storage, &c.HTTP, &c.Worker, &c.Reaper,
	} {
		if err := s.Sanitize(); err != nil {
			return err
		}
	}
	return nil
}
