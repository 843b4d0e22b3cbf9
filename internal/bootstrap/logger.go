// Package bootstrap wires configuration, storage, and services for the
// docflow binary.
package bootstrap

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger builds the process-wide structured logger and installs it as
// the slog default. Development gets human-readable text, everything else
// JSON.
func InitLogger(level string, dev bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if dev {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
