package config

import "fmt"

// StorageConfig holds settings for on-disk job directories.
type StorageConfig struct {
	// Root is the base directory under which each job gets its own
	// subtree of inputs and results.
	Root string `env:"STORAGE_ROOT" envDefault:"data/jobs"`
}

// Sanitize validates storage configuration.
func (c *StorageConfig) Sanitize() error {
	if c.Root == "" {
		return fmt.Errorf("STORAGE_ROOT must not be empty")
	}
	return nil
}
