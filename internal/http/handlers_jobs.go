package http

import (
	"log/slog"
	"net/http"

	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
	"github.com/docflow/docflow/internal/service"
)

var errValidationEmptyJobIDs = apperrors.Validation("job_ids must not be empty")

// JobHandler serves the job lifecycle endpoints.
type JobHandler struct {
	logger *slog.Logger
	svc    *service.JobService
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(svc *service.JobService, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		logger: logger.With("component", "http_jobs"),
		svc:    svc,
	}
}

// CreateJob handles POST /api/jobs.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	// The authenticated identity wins; the body field covers callers
	// without an auth proxy in front.
	if owner := requestOwner(r); owner != "" {
		req.OwnerID = owner
	}

	job, err := h.svc.CreateJob(r.Context(), req)
	if err != nil {
		h.logger.Warn("create job failed", append(requestLogValues(r), "error", err)...)
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	limit, offset, err := parseLimitOffset(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	jobs, err := h.svc.List(r.Context(), ownerFromRequest(r), statuses, limit, offset)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// GetJob handles GET /api/jobs/{job_id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Get(r.Context(), r.PathValue("job_id"), ownerFromRequest(r))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// CancelJob handles POST /api/jobs/{job_id}/cancel.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := DecodeJSON(r, &req); err != nil {
			WriteAppError(w, err)
			return
		}
	}

	job, err := h.svc.Cancel(r.Context(), r.PathValue("job_id"), ownerFromRequest(r), req.Reason)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// RenameJob handles POST /api/jobs/{job_id}/rename.
func (h *JobHandler) RenameJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}

	job, err := h.svc.Rename(r.Context(), r.PathValue("job_id"), ownerFromRequest(r), req.DisplayName)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// DeleteJobs handles DELETE /api/jobs.
func (h *JobHandler) DeleteJobs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobIDs []string `json:"job_ids"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	if len(req.JobIDs) == 0 {
		WriteAppError(w, errValidationEmptyJobIDs)
		return
	}

	deleted, err := h.svc.Delete(r.Context(), req.JobIDs, ownerFromRequest(r))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// DownloadJob handles GET /api/jobs/{job_id}/download.
func (h *JobHandler) DownloadJob(w http.ResponseWriter, r *http.Request) {
	path, filename, err := h.svc.Download(r.Context(), r.PathValue("job_id"), ownerFromRequest(r))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}

// Stats handles GET /api/jobs/stats.
func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
