package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/docflow/docflow/internal/data"
)

// ReaperConfig holds the dependencies and tuning of the stale job reaper.
type ReaperConfig struct {
	Logger       *slog.Logger
	Jobs         *data.JobRepo
	Dirs         *DirectoryManager
	TimeProvider data.TimeProvider

	// Interval is the sweep period. HeartbeatMaxAge is how long a
	// running job may go without a heartbeat before it is considered
	// abandoned. MaxRetries caps how many times an abandoned job is
	// requeued before it stays failed.
	Interval        time.Duration
	HeartbeatMaxAge time.Duration
	MaxRetries      int
}

// Reaper recovers jobs abandoned by crashed workers. A running job whose
// heartbeat has gone silent is failed on the dead worker's behalf and, while
// it has retry budget left, returned to the queue.
type Reaper struct {
	logger *slog.Logger
	jobs   *data.JobRepo
	dirs   *DirectoryManager
	tp     data.TimeProvider
	cfg    ReaperConfig
}

// NewReaper creates a Reaper.
func NewReaper(cfg ReaperConfig) *Reaper {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	return &Reaper{
		logger: cfg.Logger.With("component", "reaper"),
		jobs:   cfg.Jobs,
		dirs:   cfg.Dirs,
		tp:     tp,
		cfg:    cfg,
	}
}

// Run sweeps until ctx is cancelled. The interval carries a small jitter so
// multiple processes sharing one database do not sweep in lockstep.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info("reaper started",
		"interval", r.cfg.Interval, "heartbeat_max_age", r.cfg.HeartbeatMaxAge)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return nil
		case <-time.After(r.jitteredInterval()):
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep performs one pass and returns how many jobs it reaped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.tp.Now().Add(-r.cfg.HeartbeatMaxAge)
	stale, err := r.jobs.StaleRunning(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range stale {
		if job.LockedBy == nil {
			r.logger.Warn("running job has no lock holder", "job_id", job.JobID)
			continue
		}

		record, applied, err := r.jobs.Fail(ctx, data.FailParams{
			JobID:    job.JobID,
			WorkerID: *job.LockedBy,
			Error:    "worker heartbeat expired",
		})
		if err != nil {
			r.logger.Error("failing stale job", "job_id", job.JobID, "error", err)
			continue
		}
		if !applied {
			// The job reached a terminal state between the listing and
			// the transition. Nothing to recover.
			continue
		}
		reaped++

		r.logger.Warn("reaped stale job",
			"job_id", job.JobID, "worker_id", *job.LockedBy, "retry_count", record.RetryCount)

		if record.RetryCount < r.cfg.MaxRetries {
			record, err = r.jobs.Requeue(ctx, job.JobID, "worker heartbeat went stale")
			if err != nil {
				r.logger.Error("requeueing reaped job", "job_id", job.JobID, "error", err)
				continue
			}
		}

		if err := r.dirs.RefreshSnapshot(record); err != nil {
			r.logger.Warn("snapshot refresh failed", "job_id", job.JobID, "error", err)
		}
	}

	return reaped, nil
}

func (r *Reaper) jitteredInterval() time.Duration {
	jitter := time.Duration(rand.Int64N(int64(r.cfg.Interval) / 10))
	return r.cfg.Interval + jitter
}
