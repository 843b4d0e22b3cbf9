package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/docflow/docflow/internal/service"
)

// ServerConfig holds the dependencies and settings of the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Jobs        *service.JobService
	Addr        string
	ReadHeader  time.Duration
	Shutdown    time.Duration
	EventStream EventStreamConfig
}

// NewMux builds the API routing table.
func NewMux(cfg ServerConfig) *http.ServeMux {
	jobs := NewJobHandler(cfg.Jobs, cfg.Logger)
	events := NewEventHandler(cfg.Jobs, cfg.EventStream, cfg.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/jobs", jobs.CreateJob)
	mux.HandleFunc("GET /api/jobs", jobs.ListJobs)
	mux.HandleFunc("DELETE /api/jobs", jobs.DeleteJobs)
	mux.HandleFunc("GET /api/jobs/stats", jobs.Stats)
	mux.HandleFunc("GET /api/jobs/{job_id}", jobs.GetJob)
	mux.HandleFunc("POST /api/jobs/{job_id}/cancel", jobs.CancelJob)
	mux.HandleFunc("POST /api/jobs/{job_id}/rename", jobs.RenameJob)
	mux.HandleFunc("GET /api/jobs/{job_id}/download", jobs.DownloadJob)
	mux.HandleFunc("GET /api/jobs/{job_id}/events", events.StreamEvents)

	return mux
}

// Server wraps the HTTP server with graceful shutdown.
type Server struct {
	logger   *slog.Logger
	srv      *http.Server
	shutdown time.Duration
}

// NewServer creates the API server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		logger: cfg.Logger.With("component", "http_server"),
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewMux(cfg),
			ReadHeaderTimeout: cfg.ReadHeader,
		},
		shutdown: cfg.Shutdown,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests. The
// request contexts descend from ctx, so long-lived event streams unwind
// during shutdown instead of pinning the drain.
func (s *Server) Run(ctx context.Context) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()

	s.logger.Info("http server draining")
	return s.srv.Shutdown(shutdownCtx)
}
