package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/docflow/docflow/internal/data/sqlutil"
	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
)

// EnqueueParams holds the inputs for persisting a new job.
type EnqueueParams struct {
	OwnerID     string
	SourcePath  string
	DisplayName string
	Manifest    []model.FileRef
	Parameters  model.Parameters
}

// Enqueue persists a new job in the queued state and records its first
// lifecycle event in the same transaction.
func (r *JobRepo) Enqueue(ctx context.Context, p EnqueueParams) (*model.JobRecord, error) {
	jobID := strings.ReplaceAll(uuid.NewString(), "-", "")
	now := r.timeProvider.FormatForDB(r.timeProvider.Now())

	manifest, err := marshalJSON(p.Manifest)
	if err != nil {
		return nil, err
	}
	params, err := marshalJSON(p.Parameters)
	if err != nil {
		return nil, err
	}

	err = sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (
			  job_id, owner_id, status, source_path, display_name,
			  input_manifest, parameters, total_files, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			jobID, p.OwnerID, string(model.JobStatusQueued), p.SourcePath, p.DisplayName,
			manifest, params, len(p.Manifest), now, now,
		)
		if err != nil {
			return fmt.Errorf("inserting job: %w", err)
		}

		_, err = insertEvent(ctx, tx, r.timeProvider, eventParams{
			JobID:   jobID,
			Level:   model.EventLevelInfo,
			Message: fmt.Sprintf("Job queued with %d file(s)", len(p.Manifest)),
			Metadata: map[string]any{
				"total_files":  len(p.Manifest),
				"display_name": p.DisplayName,
			},
		})
		return err
	}})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, jobID)
}

// ClaimNext atomically claims the oldest claimable job for the given worker.
// The claim is a compare-and-swap: the candidate row is read first, then
// updated only if its version has not moved. A lost race or an empty queue
// both return (nil, nil); the caller polls again.
func (r *JobRepo) ClaimNext(ctx context.Context, workerID string) (*model.JobRecord, error) {
	var claimedID string

	err := sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT job_id, version, retry_count FROM jobs
			WHERE status IN (?, ?)
			ORDER BY created_at ASC, rowid ASC
			LIMIT 1`,
			string(model.JobStatusQueued), string(model.JobStatusRetrying),
		)

		var (
			jobID      string
			version    int64
			retryCount int
		)
		if err := row.Scan(&jobID, &version, &retryCount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("selecting claimable job: %w", err)
		}

		now := r.timeProvider.FormatForDB(r.timeProvider.Now())
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs SET
			  status = ?,
			  locked_by = ?,
			  locked_at = ?,
			  heartbeat_at = ?,
			  started_at = COALESCE(started_at, ?),
			  error = NULL,
			  version = version + 1,
			  updated_at = ?
			WHERE job_id = ? AND version = ?`,
			string(model.JobStatusRunning), workerID, now, now, now, now, jobID, version,
		)
		if err != nil {
			return fmt.Errorf("claiming job %s: %w", jobID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claiming job %s: %w", jobID, err)
		}
		if affected != 1 {
			// Another worker moved the row first. Not an error.
			return nil
		}

		message := fmt.Sprintf("Job claimed by %s", workerID)
		if retryCount > 0 {
			message = fmt.Sprintf("Job claimed by %s (retry %d)", workerID, retryCount)
		}
		if _, err := insertEvent(ctx, tx, r.timeProvider, eventParams{
			JobID:    jobID,
			Level:    model.EventLevelInfo,
			Message:  message,
			Metadata: map[string]any{"worker_id": workerID},
		}); err != nil {
			return err
		}

		claimedID = jobID
		return nil
	}})
	if err != nil {
		return nil, err
	}
	if claimedID == "" {
		return nil, nil
	}

	return r.GetByID(ctx, claimedID)
}

// ProgressParams holds the inputs for a progress update from a worker.
type ProgressParams struct {
	JobID       string
	WorkerID    string
	Processed   int
	Total       int
	Progress    float64
	CurrentFile *string
	Message     *string
}

// UpdateProgress records per-file progress for a running job and refreshes
// the worker's heartbeat. The update is rejected when the job is locked by a
// different worker.
func (r *JobRepo) UpdateProgress(ctx context.Context, p ProgressParams) (*model.JobRecord, error) {
	var updated *model.JobRecord

	err := sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		if _, err := r.guardOwnership(ctx, tx, p.JobID, p.WorkerID); err != nil {
			return err
		}

		now := r.timeProvider.FormatForDB(r.timeProvider.Now())
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET
			  processed_files = ?,
			  total_files = ?,
			  progress = ?,
			  current_file = ?,
			  heartbeat_at = ?,
			  version = version + 1,
			  updated_at = ?
			WHERE job_id = ?`,
			p.Processed, p.Total, p.Progress, p.CurrentFile, now, now, p.JobID,
		)
		if err != nil {
			return fmt.Errorf("updating progress for job %s: %w", p.JobID, err)
		}

		if p.Message != nil && *p.Message != "" {
			metadata := map[string]any{
				"processed": p.Processed,
				"total":     p.Total,
			}
			if p.CurrentFile != nil {
				metadata["current_file"] = *p.CurrentFile
			}
			if _, err := insertEvent(ctx, tx, r.timeProvider, eventParams{
				JobID:    p.JobID,
				Level:    model.EventLevelInfo,
				Message:  *p.Message,
				Metadata: metadata,
			}); err != nil {
				return err
			}
		}

		updated, err = getJobTx(ctx, tx, p.JobID)
		return err
	}})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Heartbeat refreshes the liveness timestamp of a running job without
// touching its progress, so long-running per-file work does not look
// abandoned to the reaper. Rejected when the job is locked by a different
// worker.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID, workerID string) error {
	return sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		if _, err := r.guardOwnership(ctx, tx, jobID, workerID); err != nil {
			return err
		}

		now := r.timeProvider.FormatForDB(r.timeProvider.Now())
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET
			  heartbeat_at = ?,
			  version = version + 1,
			  updated_at = ?
			WHERE job_id = ?`,
			now, now, jobID,
		)
		if err != nil {
			return fmt.Errorf("recording heartbeat for job %s: %w", jobID, err)
		}
		return nil
	}})
}

// CompleteParams holds the terminal outputs of a successful run.
type CompleteParams struct {
	JobID          string
	WorkerID       string
	OutputManifest []model.ResultRow
	DownloadPath   *string
}

// Complete marks a job as completed and releases the worker's lock. When the
// job already reached a terminal state, typically a cancellation that raced
// the finishing worker, the late completion is discarded and the stored
// record is returned with applied=false.
func (r *JobRepo) Complete(ctx context.Context, p CompleteParams) (*model.JobRecord, bool, error) {
	output, err := marshalJSON(p.OutputManifest)
	if err != nil {
		return nil, false, err
	}

	return r.finishJob(ctx, p.JobID, p.WorkerID, func(tx *sql.Tx) error {
		now := r.timeProvider.FormatForDB(r.timeProvider.Now())
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET
			  status = ?,
			  output_manifest = ?,
			  download_path = ?,
			  progress = 1.0,
			  processed_files = total_files,
			  current_file = NULL,
			  locked_by = NULL,
			  locked_at = NULL,
			  completed_at = ?,
			  version = version + 1,
			  updated_at = ?
			WHERE job_id = ?`,
			string(model.JobStatusCompleted), output, p.DownloadPath, now, now, p.JobID,
		)
		if err != nil {
			return fmt.Errorf("completing job %s: %w", p.JobID, err)
		}

		_, err = insertEvent(ctx, tx, r.timeProvider, eventParams{
			JobID:    p.JobID,
			Level:    model.EventLevelInfo,
			Message:  "Job completed",
			Metadata: map[string]any{"result_rows": len(p.OutputManifest)},
		})
		return err
	})
}

// FailParams holds the terminal error of a failed run.
type FailParams struct {
	JobID    string
	WorkerID string
	Error    string
}

// Fail marks a job as failed and releases the worker's lock. Like Complete
// it yields to a state that is already terminal.
func (r *JobRepo) Fail(ctx context.Context, p FailParams) (*model.JobRecord, bool, error) {
	return r.finishJob(ctx, p.JobID, p.WorkerID, func(tx *sql.Tx) error {
		now := r.timeProvider.FormatForDB(r.timeProvider.Now())
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET
			  status = ?,
			  error = ?,
			  current_file = NULL,
			  locked_by = NULL,
			  locked_at = NULL,
			  failed_at = ?,
			  version = version + 1,
			  updated_at = ?
			WHERE job_id = ?`,
			string(model.JobStatusFailed), p.Error, now, now, p.JobID,
		)
		if err != nil {
			return fmt.Errorf("failing job %s: %w", p.JobID, err)
		}

		_, err = insertEvent(ctx, tx, r.timeProvider, eventParams{
			JobID:   p.JobID,
			Level:   model.EventLevelError,
			Message: fmt.Sprintf("Job failed: %s", p.Error),
		})
		return err
	})
}

// finishJob runs a terminal transition under the ownership guard with
// terminal-wins semantics shared by Complete and Fail.
func (r *JobRepo) finishJob(ctx context.Context, jobID, workerID string, apply func(tx *sql.Tx) error) (*model.JobRecord, bool, error) {
	var (
		record  *model.JobRecord
		applied bool
	)

	err := sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		if _, err := r.guardOwnership(ctx, tx, jobID, workerID); err != nil {
			if apperrors.IsConflict(err) {
				// Terminal state won the race; keep it and report not applied.
				var getErr error
				record, getErr = getJobTx(ctx, tx, jobID)
				return getErr
			}
			return err
		}

		if err := apply(tx); err != nil {
			return err
		}

		applied = true
		var getErr error
		record, getErr = getJobTx(ctx, tx, jobID)
		return getErr
	}})
	if err != nil {
		return nil, false, err
	}

	return record, applied, nil
}

// Cancel moves a non-terminal job to the cancelled state. Cancelling a job
// that already finished is a conflict; cancelling a queued job prevents it
// from ever being claimed.
func (r *JobRepo) Cancel(ctx context.Context, jobID, cancelledBy, reason string) (*model.JobRecord, error) {
	var record *model.JobRecord

	err := sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		status, _, err := currentStateTx(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if status.Terminal() {
			return apperrors.Conflictf("job %s is already %s", jobID, status)
		}

		now := r.timeProvider.FormatForDB(r.timeProvider.Now())
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs SET
			  status = ?,
			  error = ?,
			  current_file = NULL,
			  locked_by = NULL,
			  locked_at = NULL,
			  cancelled_at = ?,
			  version = version + 1,
			  updated_at = ?
			WHERE job_id = ?`,
			string(model.JobStatusCancelled), reason, now, now, jobID,
		)
		if err != nil {
			return fmt.Errorf("cancelling job %s: %w", jobID, err)
		}

		if _, err := insertEvent(ctx, tx, r.timeProvider, eventParams{
			JobID:    jobID,
			Level:    model.EventLevelWarning,
			Message:  fmt.Sprintf("Job cancelled: %s", reason),
			Metadata: map[string]any{"cancelled_by": cancelledBy},
		}); err != nil {
			return err
		}

		record, err = getJobTx(ctx, tx, jobID)
		return err
	}})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Requeue returns a job to the claimable pool, bumping its retry counter
// and clearing the stale lock and progress counters so the next claimant
// starts clean.
func (r *JobRepo) Requeue(ctx context.Context, jobID, reason string) (*model.JobRecord, error) {
	var record *model.JobRecord

	err := sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		if _, _, err := currentStateTx(ctx, tx, jobID); err != nil {
			return err
		}

		now := r.timeProvider.FormatForDB(r.timeProvider.Now())
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET
			  status = ?,
			  retry_count = retry_count + 1,
			  progress = 0,
			  processed_files = 0,
			  current_file = NULL,
			  locked_by = NULL,
			  locked_at = NULL,
			  heartbeat_at = NULL,
			  version = version + 1,
			  updated_at = ?
			WHERE job_id = ?`,
			string(model.JobStatusRetrying), now, jobID,
		)
		if err != nil {
			return fmt.Errorf("requeueing job %s: %w", jobID, err)
		}

		message := "Job requeued for retry"
		if reason != "" {
			message = fmt.Sprintf("Job requeued for retry: %s", reason)
		}
		if _, err := insertEvent(ctx, tx, r.timeProvider, eventParams{
			JobID:   jobID,
			Level:   model.EventLevelInfo,
			Message: message,
		}); err != nil {
			return err
		}

		record, err = getJobTx(ctx, tx, jobID)
		return err
	}})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Rename updates a job's display name.
func (r *JobRepo) Rename(ctx context.Context, jobID, displayName string) (*model.JobRecord, error) {
	var record *model.JobRecord

	err := sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		if _, _, err := currentStateTx(ctx, tx, jobID); err != nil {
			return err
		}

		now := r.timeProvider.FormatForDB(r.timeProvider.Now())
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET display_name = ?, version = version + 1, updated_at = ?
			WHERE job_id = ?`,
			displayName, now, jobID,
		)
		if err != nil {
			return fmt.Errorf("renaming job %s: %w", jobID, err)
		}

		record, err = getJobTx(ctx, tx, jobID)
		return err
	}})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetByID retrieves a job by its identifier.
func (r *JobRepo) GetByID(ctx context.Context, jobID string) (*model.JobRecord, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("job %s not found", jobID)
		}
		return nil, fmt.Errorf("getting job %s: %w", jobID, err)
	}

	return job, nil
}

// ListParams holds the filters for a job listing.
type ListParams struct {
	OwnerID  *string
	Statuses []model.JobStatus
	Limit    int
	Offset   int
}

// List returns jobs newest first, optionally filtered by owner and status.
func (r *JobRepo) List(ctx context.Context, p ListParams) ([]*model.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var (
		clauses []string
		args    []any
	)

	if p.OwnerID != nil {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, *p.OwnerID)
	}
	if len(p.Statuses) > 0 {
		placeholders := make([]string, len(p.Statuses))
		for i, s := range p.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC, rowid DESC"
	if p.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, p.Offset)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*model.JobRecord{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// Delete removes the given jobs and their events. Returns the number of jobs
// actually deleted; unknown identifiers are skipped silently.
func (r *JobRepo) Delete(ctx context.Context, jobIDs []string) (int64, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(jobIDs))
	args := make([]any, len(jobIDs))
	for i, id := range jobIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	var deleted int64
	err := sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM jobs WHERE job_id IN (`+strings.Join(placeholders, ", ")+`)`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("deleting jobs: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	}})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// Stats returns per-status job counts.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("getting job stats: %w", err)
	}
	defer rows.Close()

	stats := &model.JobStats{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning job stats: %w", err)
		}

		stats.Total += count
		switch model.JobStatus(status) {
		case model.JobStatusQueued:
			stats.Queued = count
		case model.JobStatusRunning:
			stats.Running = count
		case model.JobStatusRetrying:
			stats.Retrying = count
		case model.JobStatusCompleted:
			stats.Completed = count
		case model.JobStatusFailed:
			stats.Failed = count
		case model.JobStatusCancelled:
			stats.Cancelled = count
		}
	}

	return stats, rows.Err()
}

// guardOwnership verifies that a worker still owns a job before a mutation.
// A terminal status surfaces as a conflict so callers can apply their own
// late-arrival policy; a lock held by another worker is an ownership
// conflict and always an error.
func (r *JobRepo) guardOwnership(ctx context.Context, tx *sql.Tx, jobID, workerID string) (model.JobStatus, error) {
	status, lockedBy, err := currentStateTx(ctx, tx, jobID)
	if err != nil {
		return "", err
	}

	if status.Terminal() {
		return status, apperrors.Conflictf("job %s is already %s", jobID, status)
	}
	if lockedBy == nil || *lockedBy != workerID {
		held := "nobody"
		if lockedBy != nil {
			held = *lockedBy
		}
		return status, apperrors.OwnershipConflictf("job %s is locked by %s, not %s", jobID, held, workerID)
	}

	return status, nil
}

func currentStateTx(ctx context.Context, tx *sql.Tx, jobID string) (model.JobStatus, *string, error) {
	var (
		status   string
		lockedBy sql.NullString
	)
	err := tx.QueryRowContext(ctx,
		`SELECT status, locked_by FROM jobs WHERE job_id = ?`, jobID,
	).Scan(&status, &lockedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, apperrors.NotFoundf("job %s not found", jobID)
		}
		return "", nil, fmt.Errorf("reading job %s: %w", jobID, err)
	}

	return model.JobStatus(status), nullStringPtr(lockedBy), nil
}

func getJobTx(ctx context.Context, tx *sql.Tx, jobID string) (*model.JobRecord, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("job %s not found", jobID)
		}
		return nil, fmt.Errorf("getting job %s: %w", jobID, err)
	}

	return job, nil
}
