// Package model defines the core data types shared across the docflow job
// system: job records, manifests, events, and the request/completion shapes
// exchanged with processors and the HTTP layer.
package model

import (
	"errors"
	"strings"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusQueued indicates a job is waiting for a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates a job is claimed and being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusRetrying indicates a job was requeued after a failure and is
	// waiting for a worker again.
	JobStatusRetrying JobStatus = "retrying"
	// JobStatusCompleted indicates a job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job failed to complete.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates a job was cancelled before completion.
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid returns true if the JobStatus is a known status value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusRetrying,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal returns true if the status is an end state. Terminal jobs are
// never mutated by late worker writes (terminal status wins).
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Claimable returns true if a worker may claim a job in this status.
func (s JobStatus) Claimable() bool {
	return s == JobStatusQueued || s == JobStatusRetrying
}

// ClaimableStatuses returns the statuses ClaimNext selects from, in no
// particular order.
func ClaimableStatuses() []JobStatus {
	return []JobStatus{JobStatusQueued, JobStatusRetrying}
}

// ParseJobStatus parses a status string, tolerating case and whitespace.
func ParseJobStatus(v string) (JobStatus, error) {
	s := JobStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", errors.New("invalid job status: " + v)
	}
	return s, nil
}

// EventLevel classifies job events.
type EventLevel string

const (
	// EventLevelInfo marks routine lifecycle events.
	EventLevelInfo EventLevel = "info"
	// EventLevelWarning marks noteworthy but non-fatal events.
	EventLevelWarning EventLevel = "warning"
	// EventLevelError marks failure events.
	EventLevelError EventLevel = "error"
)

// Valid returns true if the EventLevel is a known level.
func (l EventLevel) Valid() bool {
	return l == EventLevelInfo || l == EventLevelWarning || l == EventLevelError
}

// FileRef identifies one input file of a job: its name inside the batch and
// the absolute path it is staged from.
type FileRef struct {
	Filename   string `json:"filename"`
	SourcePath string `json:"source_path"`
	Size       int64  `json:"size"`
}

// ResultRow is one per-file result produced by a processor. Rows are opaque
// to the queue core; the report writer renders whatever keys are present.
type ResultRow map[string]any

// Parameters is the opaque key/value bag attached to a job at submission.
type Parameters map[string]any

// JobRecord is the persisted state of one submitted batch. Instances
// returned by the store are snapshots; every mutation goes back through the
// store's transition operations.
type JobRecord struct {
	JobID          string      `json:"job_id"`
	OwnerID        string      `json:"owner_id"`
	Status         JobStatus   `json:"status"`
	SourcePath     string      `json:"source_path"`
	DisplayName    string      `json:"display_name"`
	InputManifest  []FileRef   `json:"input_manifest"`
	OutputManifest []ResultRow `json:"output_manifest"`
	Parameters     Parameters  `json:"parameters"`
	TotalFiles     int         `json:"total_files"`
	ProcessedFiles int         `json:"processed_files"`
	Progress       float64     `json:"progress"`
	CurrentFile    *string     `json:"current_file,omitempty"`
	DownloadPath   *string     `json:"download_path,omitempty"`
	Error          *string     `json:"error,omitempty"`
	RetryCount     int         `json:"retry_count"`
	LockedBy       *string     `json:"locked_by,omitempty"`
	LockedAt       *time.Time  `json:"locked_at,omitempty"`
	HeartbeatAt    *time.Time  `json:"heartbeat_at,omitempty"`
	Version        int64       `json:"version"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	CancelledAt    *time.Time  `json:"cancelled_at,omitempty"`
	FailedAt       *time.Time  `json:"failed_at,omitempty"`
}

// JobEvent is one append-only entry in a job's event log. The event ID is a
// store-wide monotonic counter used as the resumption cursor by the event
// stream.
type JobEvent struct {
	EventID   int64          `json:"event_id"`
	JobID     string         `json:"job_id"`
	CreatedAt time.Time      `json:"created_at"`
	Level     EventLevel     `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
}

// JobCompletion is what a processor hands back on success.
type JobCompletion struct {
	OutputManifest []ResultRow
	DownloadPath   *string
}

// JobFile is one file reference in a submission request.
type JobFile struct {
	Filename string `json:"filename"`
}

// CreateJobRequest is a request to submit a new batch.
type CreateJobRequest struct {
	OwnerID     string     `json:"owner_id"`
	SourcePath  string     `json:"source_path"`
	DisplayName string     `json:"display_name,omitempty"`
	Files       []JobFile  `json:"files"`
	Parameters  Parameters `json:"parameters,omitempty"`
}

// Validate validates CreateJobRequest fields. Existence of the referenced
// files is checked later, against the filesystem, by the job service.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.SourcePath) == "" {
		return errors.New("source_path is required")
	}
	if len(r.Files) == 0 {
		return errors.New("files is required")
	}
	for i := range r.Files {
		if strings.TrimSpace(r.Files[i].Filename) == "" {
			return errors.New("each file entry must include a filename")
		}
	}
	return nil
}

// DefaultOwnerID is assigned when a submission does not name an owner.
const DefaultOwnerID = "anonymous"

// DefaultDisplayName derives the human label for a job created at the given
// time, matching the "MM/DD HH:MM" stamp shown in job listings.
func DefaultDisplayName(createdAt time.Time) string {
	return createdAt.Local().Format("01/02 15:04")
}

// JobStats summarizes how many jobs sit in each status bucket.
type JobStats struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Retrying  int `json:"retrying"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
