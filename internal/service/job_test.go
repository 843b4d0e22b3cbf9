package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/data"
	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
	"github.com/docflow/docflow/internal/service"
	"github.com/docflow/docflow/internal/testutil"
)

type fixture struct {
	svc   *service.JobService
	jobs  *data.JobRepo
	dirs  *service.DirectoryManager
	tp    *data.FixedTimeProvider
	inbox string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	jobs, events, tp := testutil.NewTestRepos(t)
	dirs := service.NewDirectoryManager(t.TempDir(), testutil.DiscardLogger())

	inbox := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(inbox, name), []byte("content of "+name), 0o644))
	}

	return &fixture{
		svc: service.NewJobService(service.JobServiceConfig{
			Logger:       testutil.DiscardLogger(),
			Jobs:         jobs,
			Events:       events,
			Dirs:         dirs,
			TimeProvider: tp,
		}),
		jobs:  jobs,
		dirs:  dirs,
		tp:    tp,
		inbox: inbox,
	}
}

func (f *fixture) createJob(t *testing.T, owner string) *model.JobRecord {
	t.Helper()

	job, err := f.svc.CreateJob(context.Background(), model.CreateJobRequest{
		OwnerID:    owner,
		SourcePath: f.inbox,
		Files:      []model.JobFile{{Filename: "a.pdf"}, {Filename: "b.pdf"}},
	})
	require.NoError(t, err)
	return job
}

func TestJobService_CreateJob(t *testing.T) {
	t.Run("stages inputs and writes a snapshot", func(t *testing.T) {
		f := newFixture(t)

		job := f.createJob(t, "alice")

		assert.Equal(t, model.JobStatusQueued, job.Status)
		assert.Equal(t, 2, job.TotalFiles)
		require.Len(t, job.InputManifest, 2)
		assert.Equal(t, int64(len("content of a.pdf")), job.InputManifest[0].Size)

		staged, err := os.ReadFile(filepath.Join(f.dirs.InputDir(job.JobID), "a.pdf"))
		require.NoError(t, err)
		assert.Equal(t, "content of a.pdf", string(staged))

		_, err = os.Stat(filepath.Join(f.dirs.JobDir(job.JobID), "status.json"))
		require.NoError(t, err)
	})

	t.Run("defaults owner and display name", func(t *testing.T) {
		f := newFixture(t)

		job, err := f.svc.CreateJob(context.Background(), model.CreateJobRequest{
			SourcePath: f.inbox,
			Files:      []model.JobFile{{Filename: "a.pdf"}},
		})
		require.NoError(t, err)

		assert.Equal(t, model.DefaultOwnerID, job.OwnerID)
		assert.NotEmpty(t, job.DisplayName)
	})

	t.Run("rejects a missing input file", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateJob(context.Background(), model.CreateJobRequest{
			SourcePath: f.inbox,
			Files:      []model.JobFile{{Filename: "ghost.pdf"}},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("rejects an empty file list", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateJob(context.Background(), model.CreateJobRequest{SourcePath: f.inbox})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestJobService_OwnerScoping(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "alice")

	_, err := f.svc.Get(context.Background(), job.JobID, "bob")
	assert.True(t, apperrors.IsForbidden(err))

	got, err := f.svc.Get(context.Background(), job.JobID, "alice")
	require.NoError(t, err)
	assert.Equal(t, job.JobID, got.JobID)

	mine, err := f.svc.List(context.Background(), "alice", nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := f.svc.List(context.Background(), "bob", nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestJobService_Cancel(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "alice")

	cancelled, err := f.svc.Cancel(context.Background(), job.JobID, "alice", "duplicate")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(context.Background(), job.JobID, "alice", "again")
	assert.True(t, apperrors.IsConflict(err))
}

func TestJobService_Rename(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "alice")

	renamed, err := f.svc.Rename(context.Background(), job.JobID, "alice", "payroll batch")
	require.NoError(t, err)
	assert.Equal(t, "payroll batch", renamed.DisplayName)

	_, err = f.svc.Rename(context.Background(), job.JobID, "alice", "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := f.createJob(t, "alice")
	_, err := f.svc.Cancel(ctx, done.JobID, "alice", "done with it")
	require.NoError(t, err)

	active := f.createJob(t, "alice")

	deleted, err := f.svc.Delete(ctx, []string{done.JobID, active.JobID, "unknown"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// The terminal job and its directory are gone, the active one survives.
	_, err = f.svc.Get(ctx, done.JobID, "alice")
	assert.True(t, apperrors.IsNotFound(err))
	_, statErr := os.Stat(f.dirs.JobDir(done.JobID))
	assert.True(t, os.IsNotExist(statErr))

	_, err = f.svc.Get(ctx, active.JobID, "alice")
	require.NoError(t, err)
}

func TestJobService_Download(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.createJob(t, "alice")

	t.Run("no result yet", func(t *testing.T) {
		_, _, err := f.svc.Download(ctx, job.JobID, "alice")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("resolves the completed result", func(t *testing.T) {
		claimed, err := f.jobs.ClaimNext(ctx, "worker-1")
		require.NoError(t, err)
		require.NotNil(t, claimed)

		resultPath := filepath.Join(f.dirs.OutputDir(job.JobID), "report.xlsx")
		require.NoError(t, os.WriteFile(resultPath, []byte("workbook"), 0o644))

		download := filepath.Join("output", "report.xlsx")
		_, _, err = f.jobs.Complete(ctx, data.CompleteParams{
			JobID:        job.JobID,
			WorkerID:     "worker-1",
			DownloadPath: &download,
		})
		require.NoError(t, err)

		full, filename, err := f.svc.Download(ctx, job.JobID, "alice")
		require.NoError(t, err)
		assert.Equal(t, resultPath, full)
		assert.Equal(t, "report.xlsx", filename)
	})
}

func TestJobService_Events(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "alice")

	events, err := f.svc.Events(context.Background(), job.JobID, "alice", 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Contains(t, events[0].Message, "queued")

	_, err = f.svc.Events(context.Background(), job.JobID, "bob", 0)
	assert.True(t, apperrors.IsForbidden(err))
}
