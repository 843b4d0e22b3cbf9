package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/docflow/docflow/internal/data"
	apperrors "github.com/docflow/docflow/internal/errors"
	"github.com/docflow/docflow/internal/processor"
)

// progressReporter persists processor progress for one claimed job and keeps
// the on-disk snapshot in step with the store.
type progressReporter struct {
	jobs     *data.JobRepo
	dirs     *DirectoryManager
	jobID    string
	workerID string
	logger   *slog.Logger
}

// NewProgressReporter creates a reporter bound to one job and the worker
// that holds its lock.
func NewProgressReporter(jobs *data.JobRepo, dirs *DirectoryManager, jobID, workerID string, logger *slog.Logger) processor.Reporter {
	return &progressReporter{
		jobs:     jobs,
		dirs:     dirs,
		jobID:    jobID,
		workerID: workerID,
		logger:   logger,
	}
}

// Report implements processor.Reporter. The store write doubles as the
// worker heartbeat; an ownership or terminal-state rejection propagates so
// the processor stops work on a job it no longer owns.
func (r *progressReporter) Report(ctx context.Context, p processor.Progress) error {
	var progress float64
	if p.Total > 0 {
		progress = float64(p.Processed) / float64(p.Total)
	}

	params := data.ProgressParams{
		JobID:     r.jobID,
		WorkerID:  r.workerID,
		Processed: p.Processed,
		Total:     p.Total,
		Progress:  progress,
	}
	if p.CurrentFile != "" {
		params.CurrentFile = &p.CurrentFile
	}
	if p.Message != "" {
		params.Message = &p.Message
	}

	job, err := r.jobs.UpdateProgress(ctx, params)
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			// Raw store I/O failure. Tag it so the worker can tell it
			// apart from a processor failure.
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "recording progress")
		}
		return err
	}

	if err := r.dirs.RefreshSnapshot(job); err != nil {
		r.logger.Warn("snapshot refresh failed", "job_id", r.jobID, "error", err)
	}
	return nil
}
