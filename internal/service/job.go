package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docflow/docflow/internal/data"
	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
)

// JobServiceConfig holds the dependencies of a JobService.
type JobServiceConfig struct {
	Logger       *slog.Logger
	Jobs         *data.JobRepo
	Events       *data.EventRepo
	Dirs         *DirectoryManager
	TimeProvider data.TimeProvider
}

// JobService implements the job lifecycle operations exposed over the API.
// It enforces ownership scoping; the repositories below it do not know who
// is asking.
type JobService struct {
	logger *slog.Logger
	jobs   *data.JobRepo
	events *data.EventRepo
	dirs   *DirectoryManager
	tp     data.TimeProvider
}

// NewJobService creates a JobService.
func NewJobService(cfg JobServiceConfig) *JobService {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	return &JobService{
		logger: cfg.Logger.With("component", "job_service"),
		jobs:   cfg.Jobs,
		events: cfg.Events,
		dirs:   cfg.Dirs,
		tp:     tp,
	}
}

// CreateJob validates the request, persists the job, and stages its input
// files into the job directory.
func (s *JobService) CreateJob(ctx context.Context, req model.CreateJobRequest) (*model.JobRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	manifest := make([]model.FileRef, 0, len(req.Files))
	for _, f := range req.Files {
		path := filepath.Join(req.SourcePath, f.Filename)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, apperrors.NotFoundf("input file %s not found", f.Filename)
			}
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "checking input file %s", f.Filename)
		}
		if info.IsDir() {
			return nil, apperrors.Validationf("input %s is a directory", f.Filename)
		}
		manifest = append(manifest, model.FileRef{
			Filename:   f.Filename,
			SourcePath: path,
			Size:       info.Size(),
		})
	}

	ownerID := req.OwnerID
	if ownerID == "" {
		ownerID = model.DefaultOwnerID
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = model.DefaultDisplayName(s.tp.Now())
	}

	job, err := s.jobs.Enqueue(ctx, data.EnqueueParams{
		OwnerID:     ownerID,
		SourcePath:  req.SourcePath,
		DisplayName: displayName,
		Manifest:    manifest,
		Parameters:  req.Parameters,
	})
	if err != nil {
		return nil, err
	}

	if err := s.dirs.Create(job.JobID, manifest); err != nil {
		// The row exists but its inputs never made it to disk. Park the
		// job as cancelled so no worker picks up an empty directory.
		if _, cancelErr := s.jobs.Cancel(ctx, job.JobID, "system", "input staging failed"); cancelErr != nil {
			s.logger.Error("cancelling unstageable job failed", "job_id", job.JobID, "error", cancelErr)
		}
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "staging inputs for job %s", job.JobID)
	}

	if err := s.dirs.RefreshSnapshot(job); err != nil {
		s.logger.Warn("snapshot refresh failed", "job_id", job.JobID, "error", err)
	}

	s.logger.Info("job created",
		"job_id", job.JobID, "owner_id", ownerID, "files", len(manifest))
	return job, nil
}

// Get returns a job, enforcing that the requester owns it.
func (s *JobService) Get(ctx context.Context, jobID, requesterID string) (*model.JobRecord, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(job, requesterID); err != nil {
		return nil, err
	}
	return job, nil
}

// List returns the requester's jobs, newest first.
func (s *JobService) List(ctx context.Context, requesterID string, statuses []model.JobStatus, limit, offset int) ([]*model.JobRecord, error) {
	params := data.ListParams{Statuses: statuses, Limit: limit, Offset: offset}
	if requesterID != "" {
		params.OwnerID = &requesterID
	}
	return s.jobs.List(ctx, params)
}

// Cancel requests cancellation of a job the requester owns. Queued jobs die
// immediately; running jobs are reaped when their worker next reports in.
func (s *JobService) Cancel(ctx context.Context, jobID, requesterID, reason string) (*model.JobRecord, error) {
	if _, err := s.Get(ctx, jobID, requesterID); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "cancelled by owner"
	}

	job, err := s.jobs.Cancel(ctx, jobID, requesterID, reason)
	if err != nil {
		return nil, err
	}

	if err := s.dirs.RefreshSnapshot(job); err != nil {
		s.logger.Warn("snapshot refresh failed", "job_id", jobID, "error", err)
	}

	s.logger.Info("job cancelled", "job_id", jobID, "requester", requesterID)
	return job, nil
}

// Rename changes a job's display name.
func (s *JobService) Rename(ctx context.Context, jobID, requesterID, displayName string) (*model.JobRecord, error) {
	if displayName == "" {
		return nil, apperrors.Validation("display name must not be empty")
	}
	if _, err := s.Get(ctx, jobID, requesterID); err != nil {
		return nil, err
	}

	return s.jobs.Rename(ctx, jobID, displayName)
}

// Delete removes the requester's terminal jobs along with their directories.
// Jobs still queued or running are skipped; cancel them first.
func (s *JobService) Delete(ctx context.Context, jobIDs []string, requesterID string) (int64, error) {
	eligible := make([]string, 0, len(jobIDs))
	for _, id := range jobIDs {
		job, err := s.jobs.GetByID(ctx, id)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return 0, err
		}
		if err := s.authorize(job, requesterID); err != nil {
			return 0, err
		}
		if !job.Status.Terminal() {
			s.logger.Warn("skipping delete of active job", "job_id", id, "status", job.Status)
			continue
		}
		eligible = append(eligible, id)
	}

	deleted, err := s.jobs.Delete(ctx, eligible)
	if err != nil {
		return 0, err
	}

	for _, id := range eligible {
		if err := s.dirs.Remove(id); err != nil {
			s.logger.Warn("removing job directory failed", "job_id", id, "error", err)
		}
	}

	s.logger.Info("jobs deleted", "requested", len(jobIDs), "deleted", deleted)
	return deleted, nil
}

// Download resolves the result file for a completed job. It returns the
// absolute path on disk and the filename to offer the client.
func (s *JobService) Download(ctx context.Context, jobID, requesterID string) (string, string, error) {
	job, err := s.Get(ctx, jobID, requesterID)
	if err != nil {
		return "", "", err
	}
	if job.Status != model.JobStatusCompleted || job.DownloadPath == nil {
		return "", "", apperrors.NotFoundf("job %s has no downloadable result", jobID)
	}

	full, err := s.dirs.ResolveDownload(jobID, *job.DownloadPath)
	if err != nil {
		return "", "", err
	}
	return full, filepath.Base(full), nil
}

// Events returns a job's event log after the given cursor.
func (s *JobService) Events(ctx context.Context, jobID, requesterID string, afterEventID int64) ([]*model.JobEvent, error) {
	if _, err := s.Get(ctx, jobID, requesterID); err != nil {
		return nil, err
	}
	return s.events.ListByJob(ctx, jobID, afterEventID)
}

// Stats returns queue-wide job counts.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	return s.jobs.Stats(ctx)
}

func (s *JobService) authorize(job *model.JobRecord, requesterID string) error {
	if requesterID != "" && job.OwnerID != requesterID {
		return apperrors.Forbidden(fmt.Sprintf("job %s belongs to another owner", job.JobID))
	}
	return nil
}
