package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/docflow/docflow/internal/domain/model"
	apperrors "github.com/docflow/docflow/internal/errors"
)

// OwnerHeader names the request header carrying the caller identity. Auth
// proxies in front of the API populate it; absent, the caller is treated as
// the shared anonymous owner.
const OwnerHeader = "X-Owner-ID"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// requestOwner returns the caller identity from the header or query, empty
// when neither names one.
func requestOwner(r *http.Request) string {
	if owner := strings.TrimSpace(r.Header.Get(OwnerHeader)); owner != "" {
		return owner
	}
	return strings.TrimSpace(r.URL.Query().Get("owner_id"))
}

func ownerFromRequest(r *http.Request) string {
	if owner := requestOwner(r); owner != "" {
		return owner
	}
	return model.DefaultOwnerID
}

func parseIntQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.Validationf("invalid %s parameter %q", name, raw)
	}
	return v, nil
}

func parseLimitOffset(r *http.Request) (limit, offset int, err error) {
	limit, err = parseIntQuery(r, "limit", defaultListLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	offset, err = parseIntQuery(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseStatuses(r *http.Request) ([]model.JobStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}

	var statuses []model.JobStatus
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		status, err := model.ParseJobStatus(s)
		if err != nil {
			return nil, apperrors.Validationf("invalid status filter %q", s)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
