// Package service contains the application services between the HTTP layer
// and the persistence layer.
package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
)

const (
	inputDirName  = "input"
	outputDirName = "output"
	snapshotName  = "status.json"
)

// jobSubdirs is the workspace layout under each job directory. Processors
// stage nothing themselves; input/ is staged at submission, output/ receives
// results, working/ and logs/ are scratch space for the processor.
var jobSubdirs = []string{inputDirName, "working", outputDirName, "logs"}

// DirectoryManager owns the on-disk layout of job directories. Each job gets
// root/<job_id>/ with staged source files under input/, processor results
// under output/, and a status.json snapshot for tooling that inspects the
// tree without talking to the API.
type DirectoryManager struct {
	root   string
	logger *slog.Logger
}

// NewDirectoryManager creates a DirectoryManager rooted at the given path.
func NewDirectoryManager(root string, logger *slog.Logger) *DirectoryManager {
	return &DirectoryManager{
		root:   root,
		logger: logger.With("component", "jobdir"),
	}
}

// JobDir returns the directory for a job.
func (m *DirectoryManager) JobDir(jobID string) string {
	return filepath.Join(m.root, jobID)
}

// InputDir returns the staged input directory for a job.
func (m *DirectoryManager) InputDir(jobID string) string {
	return filepath.Join(m.root, jobID, inputDirName)
}

// OutputDir returns the output directory for a job.
func (m *DirectoryManager) OutputDir(jobID string) string {
	return filepath.Join(m.root, jobID, outputDirName)
}

// Create builds the job directory and stages a copy of every input file into
// it, so processing never depends on the upload location staying alive.
func (m *DirectoryManager) Create(jobID string, files []model.FileRef) error {
	jobDir := m.JobDir(jobID)
	for _, sub := range jobSubdirs {
		if err := os.MkdirAll(filepath.Join(jobDir, sub), 0o755); err != nil {
			return fmt.Errorf("creating job directory: %w", err)
		}
	}

	inputDir := m.InputDir(jobID)
	for _, f := range files {
		if err := copyFile(f.SourcePath, filepath.Join(inputDir, f.Filename)); err != nil {
			return fmt.Errorf("staging %s: %w", f.Filename, err)
		}
	}

	m.logger.Debug("job directory created", "job_id", jobID, "files", len(files))
	return nil
}

// snapshot is the status.json document.
type snapshot struct {
	JobID          string    `json:"job_id"`
	Status         string    `json:"status"`
	OwnerID        string    `json:"owner_id"`
	DisplayName    string    `json:"display_name"`
	Progress       float64   `json:"progress"`
	ProcessedFiles int       `json:"processed_files"`
	TotalFiles     int       `json:"total_files"`
	CurrentFile    *string   `json:"current_file,omitempty"`
	Error          *string   `json:"error,omitempty"`
	DownloadPath   *string   `json:"download_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RefreshSnapshot rewrites the job's status.json from the given record. The
// write goes through a temp file and rename so readers never see a torn
// document.
func (m *DirectoryManager) RefreshSnapshot(job *model.JobRecord) error {
	dir := m.JobDir(job.JobID)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("refreshing snapshot: %w", err)
	}

	data, err := json.MarshalIndent(snapshot{
		JobID:          job.JobID,
		Status:         string(job.Status),
		OwnerID:        job.OwnerID,
		DisplayName:    job.DisplayName,
		Progress:       job.Progress,
		ProcessedFiles: job.ProcessedFiles,
		TotalFiles:     job.TotalFiles,
		CurrentFile:    job.CurrentFile,
		Error:          job.Error,
		DownloadPath:   job.DownloadPath,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := filepath.Join(dir, snapshotName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, snapshotName)); err != nil {
		return fmt.Errorf("publishing snapshot: %w", err)
	}

	return nil
}

// CleanupInputs removes the staged input copies once a job has finished with
// them. Results and the snapshot stay.
func (m *DirectoryManager) CleanupInputs(jobID string) error {
	if err := os.RemoveAll(m.InputDir(jobID)); err != nil {
		return fmt.Errorf("cleaning up inputs for job %s: %w", jobID, err)
	}
	return nil
}

// Remove deletes a job's entire directory tree.
func (m *DirectoryManager) Remove(jobID string) error {
	if err := os.RemoveAll(m.JobDir(jobID)); err != nil {
		return fmt.Errorf("removing directory for job %s: %w", jobID, err)
	}
	return nil
}

// ResolveDownload turns a job-relative download path into an absolute file
// path, rejecting anything that escapes the job directory.
func (m *DirectoryManager) ResolveDownload(jobID, downloadPath string) (string, error) {
	jobDir := m.JobDir(jobID)
	full := filepath.Join(jobDir, filepath.Clean("/"+downloadPath))
	if !strings.HasPrefix(full, jobDir+string(filepath.Separator)) {
		return "", apperrors.Validationf("invalid download path %q", downloadPath)
	}

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NotFoundf("download for job %s not found", jobID)
		}
		return "", fmt.Errorf("resolving download for job %s: %w", jobID, err)
	}

	return full, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
