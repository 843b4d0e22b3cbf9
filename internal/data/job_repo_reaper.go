package data

import (
	"context"
	"fmt"
	"time"

	"github.com/docflow/docflow/internal/domain/model"
)

// StaleRunning returns running jobs whose worker heartbeat is older than the
// cutoff. These are jobs abandoned by a crashed or partitioned worker; the
// reaper fails and optionally requeues them.
func (r *JobRepo) StaleRunning(ctx context.Context, cutoff time.Time) ([]*model.JobRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ?
		ORDER BY created_at ASC`,
		string(model.JobStatusRunning),
	)
	if err != nil {
		return nil, fmt.Errorf("listing stale running jobs: %w", err)
	}
	defer rows.Close()

	// The staleness comparison happens here rather than in SQL so it
	// stays correct even for rows written by external tooling that does
	// not use the fixed-width timestamp layout.
	jobs := []*model.JobRecord{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stale job row: %w", err)
		}
		if job.HeartbeatAt != nil && !job.HeartbeatAt.Before(cutoff) {
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}
