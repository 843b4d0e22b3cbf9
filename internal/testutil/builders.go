package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/data"
	"github.com/docflow/docflow/internal/domain/model"
)

// JobOption customizes the enqueue parameters produced by NewEnqueueParams.
type JobOption func(*data.EnqueueParams)

// WithOwner sets the job owner.
func WithOwner(ownerID string) JobOption {
	return func(p *data.EnqueueParams) { p.OwnerID = ownerID }
}

// WithDisplayName sets the job display name.
func WithDisplayName(name string) JobOption {
	return func(p *data.EnqueueParams) { p.DisplayName = name }
}

// WithFiles replaces the input manifest with n synthetic files.
func WithFiles(n int) JobOption {
	return func(p *data.EnqueueParams) {
		manifest := make([]model.FileRef, n)
		for i := range manifest {
			manifest[i] = model.FileRef{
				Filename:   fmt.Sprintf("doc-%03d.pdf", i+1),
				SourcePath: fmt.Sprintf("/inbox/doc-%03d.pdf", i+1),
				Size:       int64(1024 * (i + 1)),
			}
		}
		p.Manifest = manifest
	}
}

// WithParameters sets the processing parameters.
func WithParameters(params model.Parameters) JobOption {
	return func(p *data.EnqueueParams) { p.Parameters = params }
}

// NewEnqueueParams returns sensible enqueue defaults for tests.
func NewEnqueueParams(opts ...JobOption) data.EnqueueParams {
	p := data.EnqueueParams{
		OwnerID:     model.DefaultOwnerID,
		SourcePath:  "/inbox",
		DisplayName: "test batch",
		Manifest: []model.FileRef{
			{Filename: "a.pdf", SourcePath: "/inbox/a.pdf", Size: 2048},
			{Filename: "b.pdf", SourcePath: "/inbox/b.pdf", Size: 4096},
		},
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// SeedJob enqueues a job and returns the stored record.
func SeedJob(t *testing.T, repo *data.JobRepo, opts ...JobOption) *model.JobRecord {
	t.Helper()

	job, err := repo.Enqueue(context.Background(), NewEnqueueParams(opts...))
	require.NoError(t, err)
	return job
}

// SeedRunningJob enqueues a job and claims it for the given worker.
func SeedRunningJob(t *testing.T, repo *data.JobRepo, workerID string, opts ...JobOption) *model.JobRecord {
	t.Helper()

	SeedJob(t, repo, opts...)
	job, err := repo.ClaimNext(context.Background(), workerID)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}
