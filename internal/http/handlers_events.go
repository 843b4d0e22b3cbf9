package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/docflow/docflow/internal/domain/model"
	"github.com/docflow/docflow/internal/service"
)

// EventStreamConfig tunes the SSE event stream.
type EventStreamConfig struct {
	// Retry is the reconnect delay advertised to the client.
	Retry time.Duration
	// PollInterval is how often the store is checked for new events.
	PollInterval time.Duration
}

// EventHandler streams a job's event log over Server-Sent Events.
type EventHandler struct {
	logger *slog.Logger
	svc    *service.JobService
	cfg    EventStreamConfig
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(svc *service.JobService, cfg EventStreamConfig, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		logger: logger.With("component", "http_events"),
		svc:    svc,
		cfg:    cfg,
	}
}

// eventPayload is the data field of each SSE message.
type eventPayload struct {
	EventID   int64            `json:"event_id"`
	CreatedAt time.Time        `json:"created_at"`
	Level     model.EventLevel `json:"level"`
	Message   string           `json:"message"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// StreamEvents handles GET /api/jobs/{job_id}/events. The stream starts at
// the client's cursor, replays everything already logged, then follows the
// live log. It never closes on its own; the client disconnects when done.
func (h *EventHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	jobID := r.PathValue("job_id")
	owner := ownerFromRequest(r)
	cursor := parseCursor(r)

	// Authorization and existence are checked before the stream opens so
	// errors can still be delivered as JSON.
	if _, err := h.svc.Get(r.Context(), jobID, owner); err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: %d\n\n", h.cfg.Retry.Milliseconds())
	flusher.Flush()

	h.logger.Debug("event stream opened", "job_id", jobID, "cursor", cursor)

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()
	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		events, err := h.svc.Events(r.Context(), jobID, owner, cursor)
		if err != nil {
			// The job may have been deleted mid-stream. End the stream;
			// the advertised retry has the client confirm against a 404.
			h.logger.Debug("event stream closing", "job_id", jobID, "error", err)
			return
		}

		for _, event := range events {
			if err := writeEvent(w, event); err != nil {
				return
			}
			cursor = event.EventID
		}
		if len(events) > 0 {
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			h.logger.Debug("event stream closed by client", "job_id", jobID)
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ticker.C:
		}
	}
}

func writeEvent(w http.ResponseWriter, event *model.JobEvent) error {
	data, err := json.Marshal(eventPayload{
		EventID:   event.EventID,
		CreatedAt: event.CreatedAt,
		Level:     event.Level,
		Message:   event.Message,
		Metadata:  event.Metadata,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "id: %d\nevent: update\ndata: %s\n\n", event.EventID, data)
	return err
}

// parseCursor reads the resume cursor from the standard Last-Event-ID header
// or the last_event_id query parameter. Malformed cursors restart from the
// beginning rather than erroring a reconnect.
func parseCursor(r *http.Request) int64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("last_event_id")
	}
	if raw == "" {
		return 0
	}

	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || cursor < 0 {
		return 0
	}
	return cursor
}
