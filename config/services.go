package config

import (
	"fmt"
	"slices"
	"strings"
)

// Service names accepted in the SERVICES list.
const (
	ServiceHTTP   = "http"
	ServiceWorker = "worker"
	ServiceReaper = "reaper"
)

var knownServices = []string{ServiceHTTP, ServiceWorker, ServiceReaper}

// ServicesConfig selects which services this process runs. A single binary
// can host the API, the workers, and the reaper together or split them
// across processes that share the database file.
type ServicesConfig struct {
	Enabled string `env:"SERVICES" envDefault:"http,worker,reaper"`
}

// List returns the enabled service names.
func (c *ServicesConfig) List() []string {
	var out []string
	for _, s := range strings.Split(c.Enabled, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether the named service is enabled.
func (c *ServicesConfig) Has(name string) bool {
	return slices.Contains(c.List(), name)
}

// Sanitize validates the service list.
func (c *ServicesConfig) Sanitize() error {
	list := c.List()
	if len(list) == 0 {
		return fmt.Errorf("SERVICES must enable at least one service")
	}
	for _, s := range list {
		if !slices.Contains(knownServices, s) {
			return fmt.Errorf("unknown service %q in SERVICES", s)
		}
	}
	return nil
}
