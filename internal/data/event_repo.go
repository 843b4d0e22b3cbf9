package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
)

// EventRepo provides database operations for the per-job event log.
type EventRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *sql.DB, cfg RepoConfig) *EventRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &EventRepo{DB: db, timeProvider: tp}
}

// eventParams holds the inputs for a single event row.
type eventParams struct {
	JobID    string
	Level    model.EventLevel
	Message  string
	Metadata map[string]any
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertEvent writes one event row. It runs on whatever executor the caller
// holds so job transitions can append events inside their own transaction.
func insertEvent(ctx context.Context, db execer, tp TimeProvider, p eventParams) (int64, error) {
	metadata, err := marshalJSON(p.Metadata)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO job_events (job_id, created_at, level, message, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		p.JobID, tp.FormatForDB(tp.Now()), string(p.Level), p.Message, metadata,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting event for job %s: %w", p.JobID, err)
	}

	eventID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inserting event for job %s: %w", p.JobID, err)
	}

	return eventID, nil
}

// Append records an event against an existing job.
func (r *EventRepo) Append(ctx context.Context, jobID string, level model.EventLevel, message string, metadata map[string]any) (*model.JobEvent, error) {
	var exists int
	err := r.DB.QueryRowContext(ctx,
		`SELECT 1 FROM jobs WHERE job_id = ?`, jobID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("job %s not found", jobID)
		}
		return nil, fmt.Errorf("reading job %s: %w", jobID, err)
	}

	eventID, err := insertEvent(ctx, r.DB, r.timeProvider, eventParams{
		JobID:    jobID,
		Level:    level,
		Message:  message,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	return r.getByID(ctx, eventID)
}

// ListByJob returns a job's events in append order, strictly after the given
// cursor. A cursor of 0 yields the full log; feeding the last event_id back
// in resumes without gaps or duplicates.
func (r *EventRepo) ListByJob(ctx context.Context, jobID string, afterEventID int64) ([]*model.JobEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT event_id, job_id, created_at, level, message, metadata
		FROM job_events
		WHERE job_id = ? AND event_id > ?
		ORDER BY event_id ASC`,
		jobID, afterEventID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events for job %s: %w", jobID, err)
	}
	defer rows.Close()

	events := []*model.JobEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func (r *EventRepo) getByID(ctx context.Context, eventID int64) (*model.JobEvent, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT event_id, job_id, created_at, level, message, metadata
		FROM job_events WHERE event_id = ?`, eventID)

	event, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("getting event %d: %w", eventID, err)
	}

	return event, nil
}

func scanEvent(scanner rowScanner) (*model.JobEvent, error) {
	var (
		event     model.JobEvent
		createdAt string
		level     string
		metadata  sql.NullString
	)

	err := scanner.Scan(&event.EventID, &event.JobID, &createdAt, &level, &event.Message, &metadata)
	if err != nil {
		return nil, err
	}

	event.Level = model.EventLevel(level)
	if event.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for event %d: %w", event.EventID, err)
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := unmarshalMetadata(metadata.String, &event.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for event %d: %w", event.EventID, err)
		}
	}

	return &event, nil
}
