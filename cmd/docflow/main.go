// Command docflow runs the document processing backend: the HTTP API, the
// job workers, and the stale job reaper, selected by the SERVICES
// environment variable.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/docflow/docflow/internal/bootstrap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docflow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger := bootstrap.InitLogger(cfg.LogLevel, cfg.IsDev())

	ctx := context.Background()
	app, err := bootstrap.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	return app.Run(ctx)
}
