package data

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docflow/docflow/internal/domain/model"
)

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan path.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*model.JobRecord, error) {
	var (
		job            model.JobRecord
		status         string
		inputManifest  string
		outputManifest sql.NullString
		parameters     sql.NullString
		currentFile    sql.NullString
		downloadPath   sql.NullString
		errMsg         sql.NullString
		lockedBy       sql.NullString
		lockedAt       sql.NullString
		heartbeatAt    sql.NullString
		createdAt      string
		updatedAt      string
		startedAt      sql.NullString
		completedAt    sql.NullString
		cancelledAt    sql.NullString
		failedAt       sql.NullString
	)

	err := scanner.Scan(
		&job.JobID,
		&job.OwnerID,
		&status,
		&job.SourcePath,
		&job.DisplayName,
		&inputManifest,
		&outputManifest,
		&parameters,
		&job.TotalFiles,
		&job.ProcessedFiles,
		&job.Progress,
		&currentFile,
		&downloadPath,
		&errMsg,
		&lockedBy,
		&lockedAt,
		&heartbeatAt,
		&job.Version,
		&job.RetryCount,
		&createdAt,
		&updatedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&failedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)

	if err := json.Unmarshal([]byte(inputManifest), &job.InputManifest); err != nil {
		return nil, fmt.Errorf("decoding input manifest for job %s: %w", job.JobID, err)
	}
	if outputManifest.Valid && outputManifest.String != "" {
		if err := json.Unmarshal([]byte(outputManifest.String), &job.OutputManifest); err != nil {
			return nil, fmt.Errorf("decoding output manifest for job %s: %w", job.JobID, err)
		}
	}
	if parameters.Valid && parameters.String != "" {
		if err := json.Unmarshal([]byte(parameters.String), &job.Parameters); err != nil {
			return nil, fmt.Errorf("decoding parameters for job %s: %w", job.JobID, err)
		}
	}

	job.CurrentFile = nullStringPtr(currentFile)
	job.DownloadPath = nullStringPtr(downloadPath)
	job.Error = nullStringPtr(errMsg)
	job.LockedBy = nullStringPtr(lockedBy)

	if job.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %s: %w", job.JobID, err)
	}
	if job.UpdatedAt, err = parseDBTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %s: %w", job.JobID, err)
	}

	for _, col := range []struct {
		src  sql.NullString
		dest **time.Time
	}{
		{lockedAt, &job.LockedAt},
		{heartbeatAt, &job.HeartbeatAt},
		{startedAt, &job.StartedAt},
		{completedAt, &job.CompletedAt},
		{cancelledAt, &job.CancelledAt},
		{failedAt, &job.FailedAt},
	} {
		if !col.src.Valid || col.src.String == "" {
			continue
		}
		t, err := parseDBTime(col.src.String)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp for job %s: %w", job.JobID, err)
		}
		*col.dest = &t
	}

	return &job, nil
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func parseDBTime(s string) (time.Time, error) {
	t, err := time.Parse(dbTimeLayout, s)
	if err != nil {
		// Tolerate second precision written by external tooling.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

func unmarshalMetadata(s string, dest *map[string]any) error {
	return json.Unmarshal([]byte(s), dest)
}

// marshalJSON encodes v as a JSON TEXT column value. Nil maps and slices
// encode as empty documents so scans never see SQL NULL for manifests.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json column: %w", err)
	}
	return string(data), nil
}
