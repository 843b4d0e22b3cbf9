// Package worker implements the polling job workers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docflow/docflow/internal/data"
	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
	"github.com/docflow/docflow/internal/processor"
	"github.com/docflow/docflow/internal/service"
)

// Options holds the dependencies and tuning of a worker.
type Options struct {
	// ID identifies this worker in job locks and events. Left empty, a
	// random one is generated.
	ID           string
	Logger       *slog.Logger
	Jobs         *data.JobRepo
	Dirs         *service.DirectoryManager
	Registry     *processor.Registry
	PollInterval time.Duration
	// HeartbeatInterval is how often a background heartbeat is recorded
	// while a processor runs. Zero disables the ticker; progress reports
	// still refresh the heartbeat.
	HeartbeatInterval time.Duration
}

// Worker claims jobs from the queue and runs their processor. Several
// workers can poll the same store concurrently; the claim protocol
// guarantees no job runs twice.
type Worker struct {
	id                string
	logger            *slog.Logger
	jobs              *data.JobRepo
	dirs              *service.DirectoryManager
	registry          *processor.Registry
	pollInterval      time.Duration
	heartbeatInterval time.Duration
}

// New creates a Worker.
func New(opts Options) *Worker {
	id := opts.ID
	if id == "" {
		id = "worker-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}

	return &Worker{
		id:                id,
		logger:            opts.Logger.With("component", "worker", "worker_id", id),
		jobs:              opts.Jobs,
		dirs:              opts.Dirs,
		registry:          opts.Registry,
		pollInterval:      opts.PollInterval,
		heartbeatInterval: opts.HeartbeatInterval,
	}
}

// ID returns the worker's identifier.
func (w *Worker) ID() string { return w.id }

// Run polls for work until ctx is cancelled. Store failures abort the loop;
// job failures do not.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "poll_interval", w.pollInterval)

	for {
		claimed, err := w.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return fmt.Errorf("worker %s: %w", w.id, err)
		}
		if claimed {
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		case <-time.After(w.pollInterval):
		}
	}

	w.logger.Info("worker stopped")
	return nil
}

// RunOnce claims at most one job and processes it to a terminal state. It
// reports whether a job was claimed so the caller knows whether to poll
// again immediately or back off.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNext(ctx, w.id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.logger.Info("job claimed", "job_id", job.JobID, "files", job.TotalFiles)
	if err := w.process(ctx, job); err != nil {
		return true, err
	}
	return true, nil
}

// process drives one claimed job to a terminal state. Processor failures are
// recorded on the job; store failures are returned so the polling loop dies
// and host supervision restarts the worker.
func (w *Worker) process(ctx context.Context, job *model.JobRecord) error {
	jobDir := w.dirs.JobDir(job.JobID)
	reporter := service.NewProgressReporter(w.jobs, w.dirs, job.JobID, w.id, w.logger)

	proc, err := w.registry.Resolve(job.Parameters)
	if err != nil {
		return w.fail(ctx, job.JobID, err)
	}

	stopHeartbeat := w.startHeartbeat(ctx, job.JobID)
	completion, err := proc.Run(ctx, job, jobDir, reporter)
	stopHeartbeat()
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// Shutdown mid-run. The job stays locked and running; the
			// reaper requeues it once the heartbeat goes stale.
			w.logger.Warn("run interrupted by shutdown", "job_id", job.JobID)
			return nil
		case apperrors.IsConflict(err), apperrors.IsOwnershipConflict(err):
			w.logger.Warn("job no longer ours", "job_id", job.JobID, "error", err)
			return nil
		case apperrors.IsInternal(err):
			// Store I/O failure surfaced through the reporter. Not the
			// job's fault; do not record it as one.
			return err
		default:
			return w.fail(ctx, job.JobID, err)
		}
	}

	if completion == nil {
		completion = &model.JobCompletion{}
	}
	return w.complete(ctx, job.JobID, completion)
}

// startHeartbeat keeps the job's liveness timestamp fresh while the
// processor runs, so the reaper never mistakes a slow file for a dead
// worker. The returned func stops the ticker and waits for it to exit.
func (w *Worker) startHeartbeat(ctx context.Context, jobID string) func() {
	if w.heartbeatInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(w.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.jobs.Heartbeat(ctx, jobID, w.id); err != nil {
					w.logger.Warn("heartbeat failed", "job_id", jobID, "error", err)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (w *Worker) complete(ctx context.Context, jobID string, completion *model.JobCompletion) error {
	record, applied, err := w.jobs.Complete(ctx, data.CompleteParams{
		JobID:          jobID,
		WorkerID:       w.id,
		OutputManifest: completion.OutputManifest,
		DownloadPath:   completion.DownloadPath,
	})
	if err != nil {
		return fmt.Errorf("recording completion of job %s: %w", jobID, err)
	}
	if !applied {
		w.logger.Warn("completion discarded, job already terminal",
			"job_id", jobID, "status", record.Status)
		return nil
	}

	if err := w.dirs.CleanupInputs(jobID); err != nil {
		w.logger.Warn("input cleanup failed", "job_id", jobID, "error", err)
	}
	if err := w.dirs.RefreshSnapshot(record); err != nil {
		w.logger.Warn("snapshot refresh failed", "job_id", jobID, "error", err)
	}

	w.logger.Info("job completed", "job_id", jobID)
	return nil
}

func (w *Worker) fail(ctx context.Context, jobID string, cause error) error {
	record, applied, err := w.jobs.Fail(ctx, data.FailParams{
		JobID:    jobID,
		WorkerID: w.id,
		Error:    cause.Error(),
	})
	if err != nil {
		return fmt.Errorf("recording failure of job %s: %w", jobID, err)
	}
	if !applied {
		w.logger.Warn("failure discarded, job already terminal",
			"job_id", jobID, "status", record.Status)
		return nil
	}

	if err := w.dirs.RefreshSnapshot(record); err != nil {
		w.logger.Warn("snapshot refresh failed", "job_id", jobID, "error", err)
	}

	w.logger.Error("job failed", "job_id", jobID, "error", cause)
	return nil
}
