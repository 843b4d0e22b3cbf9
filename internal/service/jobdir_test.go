package service_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
	"github.com/docflow/docflow/internal/service"
	"github.com/docflow/docflow/internal/testutil"
)

func TestDirectoryManager(t *testing.T) {
	newManager := func(t *testing.T) (*service.DirectoryManager, string) {
		t.Helper()
		src := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(src, "a.pdf"), []byte("hello"), 0o644))
		return service.NewDirectoryManager(t.TempDir(), testutil.DiscardLogger()), src
	}

	t.Run("create stages inputs", func(t *testing.T) {
		m, src := newManager(t)

		err := m.Create("job-1", []model.FileRef{
			{Filename: "a.pdf", SourcePath: filepath.Join(src, "a.pdf"), Size: 5},
		})
		require.NoError(t, err)

		staged, err := os.ReadFile(filepath.Join(m.InputDir("job-1"), "a.pdf"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(staged))

		for _, sub := range []string{"input", "working", "output", "logs"} {
			info, err := os.Stat(filepath.Join(m.JobDir("job-1"), sub))
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		}
	})

	t.Run("snapshot round trips", func(t *testing.T) {
		m, _ := newManager(t)
		require.NoError(t, m.Create("job-2", nil))

		job := &model.JobRecord{
			JobID:          "job-2",
			Status:         model.JobStatusRunning,
			OwnerID:        "alice",
			DisplayName:    "snapshot test",
			Progress:       0.4,
			ProcessedFiles: 2,
			TotalFiles:     5,
		}
		require.NoError(t, m.RefreshSnapshot(job))

		raw, err := os.ReadFile(filepath.Join(m.JobDir("job-2"), "status.json"))
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(raw, &doc))
		assert.Equal(t, "running", doc["status"])
		assert.Equal(t, "alice", doc["owner_id"])
		assert.InDelta(t, 0.4, doc["progress"], 1e-9)
	})

	t.Run("cleanup removes only inputs", func(t *testing.T) {
		m, src := newManager(t)
		require.NoError(t, m.Create("job-3", []model.FileRef{
			{Filename: "a.pdf", SourcePath: filepath.Join(src, "a.pdf")},
		}))

		require.NoError(t, m.CleanupInputs("job-3"))

		_, err := os.Stat(m.InputDir("job-3"))
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(m.OutputDir("job-3"))
		assert.NoError(t, err)
	})

	t.Run("download resolution stays inside the job directory", func(t *testing.T) {
		m, _ := newManager(t)
		require.NoError(t, m.Create("job-4", nil))
		require.NoError(t, os.WriteFile(filepath.Join(m.OutputDir("job-4"), "report.xlsx"), []byte("x"), 0o644))

		full, err := m.ResolveDownload("job-4", "output/report.xlsx")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(m.OutputDir("job-4"), "report.xlsx"), full)

		_, err = m.ResolveDownload("job-4", "output/missing.xlsx")
		assert.True(t, apperrors.IsNotFound(err))

		_, err = m.ResolveDownload("job-4", "../job-5/output/report.xlsx")
		require.Error(t, err)
	})
}
