package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/docflow/docflow/config"
	"github.com/docflow/docflow/internal/data"
	docflowhttp "github.com/docflow/docflow/internal/http"
	"github.com/docflow/docflow/internal/processor"
	"github.com/docflow/docflow/internal/service"
	"github.com/docflow/docflow/internal/worker"
)

// Service is anything that runs until its context is cancelled.
type Service interface {
	Run(ctx context.Context) error
}

// App holds the wired application.
type App struct {
	Logger   *slog.Logger
	Config   *config.AppConfig
	DB       *sql.DB
	Jobs     *service.JobService
	services []Service
}

// NewApp connects storage and wires every enabled service.
func NewApp(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	db, err := ConnectDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating storage root: %w", err)
	}

	repoCfg := data.RepoConfig{Logger: logger}
	jobRepo := data.NewJobRepo(db, repoCfg)
	eventRepo := data.NewEventRepo(db, repoCfg)
	dirs := service.NewDirectoryManager(cfg.Storage.Root, logger)

	jobSvc := service.NewJobService(service.JobServiceConfig{
		Logger: logger,
		Jobs:   jobRepo,
		Events: eventRepo,
		Dirs:   dirs,
	})

	app := &App{
		Logger: logger,
		Config: cfg,
		DB:     db,
		Jobs:   jobSvc,
	}

	if cfg.Services.Has(config.ServiceHTTP) {
		app.services = append(app.services, docflowhttp.NewServer(docflowhttp.ServerConfig{
			Logger:     logger,
			Jobs:       jobSvc,
			Addr:       cfg.HTTP.Addr,
			ReadHeader: cfg.HTTP.ReadHeaderTimeout,
			Shutdown:   cfg.HTTP.ShutdownTimeout,
			EventStream: docflowhttp.EventStreamConfig{
				Retry:        cfg.HTTP.SSERetry,
				PollInterval: cfg.HTTP.SSEPollInterval,
			},
		}))
	}

	if cfg.Services.Has(config.ServiceWorker) {
		registry := processor.NewRegistry(processor.AnalyzerName)
		registry.Register(processor.NewAnalyzer())

		for i := 0; i < cfg.Worker.Count; i++ {
			app.services = append(app.services, worker.New(worker.Options{
				Logger:            logger,
				Jobs:              jobRepo,
				Dirs:              dirs,
				Registry:          registry,
				PollInterval:      cfg.Worker.PollInterval,
				HeartbeatInterval: cfg.Worker.HeartbeatInterval,
			}))
		}
	}

	if cfg.Services.Has(config.ServiceReaper) {
		app.services = append(app.services, service.NewReaper(service.ReaperConfig{
			Logger:          logger,
			Jobs:            jobRepo,
			Dirs:            dirs,
			Interval:        cfg.Reaper.Interval,
			HeartbeatMaxAge: cfg.Reaper.HeartbeatMaxAge,
			MaxRetries:      cfg.Reaper.MaxRetries,
		}))
	}

	return app, nil
}

// Run starts every enabled service and blocks until one fails or a shutdown
// signal arrives. All services share one context, so the first failure or
// signal drains the whole process.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("starting services",
		"services", a.Config.Services.List(), "env", a.Config.Env)

	g, ctx := errgroup.WithContext(ctx)
	for _, svc := range a.services {
		g.Go(func() error { return svc.Run(ctx) })
	}

	err := g.Wait()
	if closeErr := a.DB.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	a.Logger.Info("all services stopped")
	return err
}
