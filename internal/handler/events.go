package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sightgrid/sightgrid/internal/media"
	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/server/middleware"
	"github.com/sightgrid/sightgrid/internal/store"
	"github.com/sightgrid/sightgrid/internal/stream"
)

// EventHandler serves the dashboard's event queries, the live event
// stream, and stored detection frames.
type EventHandler struct {
	store  *store.Store
	hub    *stream.Hub
	media  *media.Store
	logger *slog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(st *store.Store, hub *stream.Hub, mediaStore *media.Store, logger *slog.Logger) *EventHandler {
	return &EventHandler{store: st, hub: hub, media: mediaStore, logger: logger}
}

// List returns the organization's events, filtered and paginated.
// GET /api/v1/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	filter := model.EventFilter{
		OrgID:         principal.OrgID,
		CameraID:      queryString(r, "camera_id"),
		EventType:     queryString(r, "event_type"),
		MinConfidence: queryFloat(r, "min_confidence"),
		Start:         queryTime(r, "start"),
		End:           queryTime(r, "end"),
		Limit:         queryInt(r, "limit", 100),
		Cursor:        queryInt(r, "cursor", 0),
	}
	if filter.EventType != "" && !model.ValidEventType(filter.EventType) {
		writeError(w, http.StatusBadRequest, "invalid event_type")
		return
	}

	events, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("list events", "org_id", principal.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	var next *int
	if len(events) == filter.Limit {
		n := filter.Cursor + len(events)
		next = &n
	}
	writeJSON(w, http.StatusOK, model.ListResponse{Data: events, NextCursor: next})
}

// Get returns a single event by id.
// GET /api/v1/events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	evt, err := h.store.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	if evt.OrgID != principal.OrgID {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

// DailyStats returns per-camera daily detection counts.
// GET /api/v1/stats/daily
func (h *EventHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	days := queryInt(r, "days", 14)
	if days < 1 || days > 365 {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
		return
	}

	stats, err := h.store.DailyStats(r.Context(), principal.OrgID, days)
	if err != nil {
		h.logger.Error("daily stats", "org_id", principal.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{Data: stats})
}

// Stream pushes newly stored events to the dashboard over SSE until the
// client disconnects.
// GET /api/v1/events/stream
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, cancel := h.hub.Subscribe(principal.OrgID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: detection\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// Frame serves a stored detection frame or thumbnail. Keys are rooted
// under the organization's own prefix, so cross-tenant reads 404.
// GET /api/v1/frames/*
func (h *EventHandler) Frame(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, http.StatusNotFound, "frame not found")
		return
	}
	orgPrefix := "frames/" + principal.OrgID + "/"
	if len(key) < len(orgPrefix) || key[:len(orgPrefix)] != orgPrefix {
		writeError(w, http.StatusNotFound, "frame not found")
		return
	}

	path, err := h.media.Path(key)
	if err != nil {
		writeError(w, http.StatusNotFound, "frame not found")
		return
	}
	http.ServeFile(w, r, path)
}
