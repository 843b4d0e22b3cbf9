package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/data"
	"github.com/docflow/docflow/internal/domain/model"
	docflowhttp "github.com/docflow/docflow/internal/http"
	"github.com/docflow/docflow/internal/service"
	"github.com/docflow/docflow/internal/testutil"
)

type apiFixture struct {
	mux   *http.ServeMux
	jobs  *data.JobRepo
	inbox string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	jobs, events, tp := testutil.NewTestRepos(t)
	dirs := service.NewDirectoryManager(t.TempDir(), testutil.DiscardLogger())
	svc := service.NewJobService(service.JobServiceConfig{
		Logger:       testutil.DiscardLogger(),
		Jobs:         jobs,
		Events:       events,
		Dirs:         dirs,
		TimeProvider: tp,
	})

	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "a.pdf"), []byte("pdf bytes"), 0o644))

	return &apiFixture{
		mux: docflowhttp.NewMux(docflowhttp.ServerConfig{
			Logger: testutil.DiscardLogger(),
			Jobs:   svc,
			EventStream: docflowhttp.EventStreamConfig{
				Retry:        time.Millisecond,
				PollInterval: 10 * time.Millisecond,
			},
		}),
		jobs:  jobs,
		inbox: inbox,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set(docflowhttp.OwnerHeader, owner)
	}

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createJob(t *testing.T, owner string) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/jobs", owner, map[string]any{
		"source_path": f.inbox,
		"files":       []map[string]string{{"filename": "a.pdf"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var job model.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	return job.JobID
}

func TestAPI_CreateJob(t *testing.T) {
	t.Run("creates and returns the job", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/api/jobs", "alice", map[string]any{
			"source_path":  f.inbox,
			"display_name": "invoices",
			"files":        []map[string]string{{"filename": "a.pdf"}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var job model.JobRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.NotEmpty(t, job.JobID)
		assert.Equal(t, "alice", job.OwnerID)
		assert.Equal(t, model.JobStatusQueued, job.Status)
		assert.Equal(t, "invoices", job.DisplayName)
	})

	t.Run("body owner is honored without a header", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/api/jobs", "", map[string]any{
			"owner_id":    "carol",
			"source_path": f.inbox,
			"files":       []map[string]string{{"filename": "a.pdf"}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var job model.JobRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, "carol", job.OwnerID)
	})

	t.Run("header owner wins over the body", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/api/jobs", "alice", map[string]any{
			"owner_id":    "carol",
			"source_path": f.inbox,
			"files":       []map[string]string{{"filename": "a.pdf"}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var job model.JobRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, "alice", job.OwnerID)
	})

	t.Run("missing file is a 404", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/api/jobs", "alice", map[string]any{
			"source_path": f.inbox,
			"files":       []map[string]string{{"filename": "ghost.pdf"}},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp docflowhttp.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "not_found", resp.Error.Code)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		f := newAPIFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString("{nope"))
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_GetJob(t *testing.T) {
	f := newAPIFixture(t)
	jobID := f.createJob(t, "alice")

	t.Run("owner sees the job", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/jobs/"+jobID, "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var job model.JobRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, jobID, job.JobID)
	})

	t.Run("other owners get a 403", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/jobs/"+jobID, "bob", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown job is a 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/jobs/deadbeef", "alice", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAPI_ListJobs(t *testing.T) {
	f := newAPIFixture(t)
	f.createJob(t, "alice")
	f.createJob(t, "alice")
	f.createJob(t, "bob")

	rec := f.do(t, http.MethodGet, "/api/jobs", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []model.JobRecord `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)

	t.Run("status filter", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/jobs?status=running", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Jobs)
	})

	t.Run("bad status filter", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/jobs?status=bogus", "alice", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_CancelJob(t *testing.T) {
	f := newAPIFixture(t)
	jobID := f.createJob(t, "alice")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/jobs/%s/cancel", jobID), "alice",
		map[string]string{"reason": "wrong files"})
	require.Equal(t, http.StatusOK, rec.Code)

	var job model.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, model.JobStatusCancelled, job.Status)

	t.Run("second cancel is a 409", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/jobs/%s/cancel", jobID), "alice", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestAPI_RenameJob(t *testing.T) {
	f := newAPIFixture(t)
	jobID := f.createJob(t, "alice")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/jobs/%s/rename", jobID), "alice",
		map[string]string{"display_name": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var job model.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "renamed", job.DisplayName)
}

func TestAPI_DeleteJobs(t *testing.T) {
	f := newAPIFixture(t)
	jobID := f.createJob(t, "alice")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/jobs/%s/cancel", jobID), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/jobs", "alice",
		map[string]any{"job_ids": []string{jobID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted": 1}`, rec.Body.String())

	t.Run("empty id list is a 400", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/jobs", "alice", map[string]any{"job_ids": []string{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_DownloadJob(t *testing.T) {
	f := newAPIFixture(t)
	jobID := f.createJob(t, "alice")

	t.Run("no result yet is a 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/jobs/%s/download", jobID), "alice", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAPI_Stats(t *testing.T) {
	f := newAPIFixture(t)
	f.createJob(t, "alice")

	rec := f.do(t, http.MethodGet, "/api/jobs/stats", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.JobStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Queued)
}

func TestAPI_Healthz(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}
