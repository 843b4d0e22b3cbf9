// Package data provides the persistence layer for the docflow job system.
// The job store is the single source of truth and the concurrency arbiter:
// every state transition runs inside a store-level transaction over one
// serialized write connection.
package data

import (
	"database/sql"
	"log/slog"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for job management. All mutations go
// through transition methods; callers never hold live references to rows.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo with the given database handle and
// configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  job_id,
  owner_id,
  status,
  source_path,
  display_name,
  input_manifest,
  output_manifest,
  parameters,
  total_files,
  processed_files,
  progress,
  current_file,
  download_path,
  error,
  locked_by,
  locked_at,
  heartbeat_at,
  version,
  retry_count,
  created_at,
  updated_at,
  started_at,
  completed_at,
  cancelled_at,
  failed_at
`
