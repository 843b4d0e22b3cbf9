package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/data"
	"github.com/docflow/docflow/internal/domain/model"
	"github.com/docflow/docflow/internal/service"
	"github.com/docflow/docflow/internal/testutil"
)

func newReaper(t *testing.T, jobs *data.JobRepo, tp *data.FixedTimeProvider, maxRetries int) *service.Reaper {
	t.Helper()

	return service.NewReaper(service.ReaperConfig{
		Logger:          testutil.DiscardLogger(),
		Jobs:            jobs,
		Dirs:            service.NewDirectoryManager(t.TempDir(), testutil.DiscardLogger()),
		TimeProvider:    tp,
		Interval:        time.Second,
		HeartbeatMaxAge: 2 * time.Minute,
		MaxRetries:      maxRetries,
	})
}

func TestReaper_Sweep(t *testing.T) {
	t.Run("requeues an abandoned job", func(t *testing.T) {
		jobs, _, tp := testutil.NewTestRepos(t)
		ctx := context.Background()

		job := testutil.SeedRunningJob(t, jobs, "worker-dead")
		tp.AddTime(5 * time.Minute)

		reaped, err := newReaper(t, jobs, tp, 3).Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, reaped)

		record, err := jobs.GetByID(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRetrying, record.Status)
		assert.Equal(t, 1, record.RetryCount)
		assert.Nil(t, record.LockedBy)
	})

	t.Run("leaves a job failed once retries are spent", func(t *testing.T) {
		jobs, _, tp := testutil.NewTestRepos(t)
		ctx := context.Background()

		job := testutil.SeedRunningJob(t, jobs, "worker-dead")
		reaper := newReaper(t, jobs, tp, 1)

		tp.AddTime(5 * time.Minute)
		_, err := reaper.Sweep(ctx)
		require.NoError(t, err)

		// The retry is claimed and abandoned again.
		claimed, err := jobs.ClaimNext(ctx, "worker-dead")
		require.NoError(t, err)
		require.NotNil(t, claimed)

		tp.AddTime(5 * time.Minute)
		_, err = reaper.Sweep(ctx)
		require.NoError(t, err)

		record, err := jobs.GetByID(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, record.Status)
		assert.Equal(t, 1, record.RetryCount)
	})

	t.Run("ignores jobs with fresh heartbeats", func(t *testing.T) {
		jobs, _, tp := testutil.NewTestRepos(t)

		testutil.SeedRunningJob(t, jobs, "worker-live")

		reaped, err := newReaper(t, jobs, tp, 3).Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, reaped)
	})
}
