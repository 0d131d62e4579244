package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sightgrid/sightgrid/internal/export"
	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/server/middleware"
	"github.com/sightgrid/sightgrid/internal/store"
)

// ExportHandler creates event exports and serves the generated files.
type ExportHandler struct {
	store    *store.Store
	exporter *export.Exporter
	logger   *slog.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(st *store.Store, exporter *export.Exporter, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{store: st, exporter: exporter, logger: logger}
}

type exportRequest struct {
	CameraID      string   `json:"camera_id"`
	EventType     string   `json:"event_type"`
	MinConfidence *float64 `json:"min_confidence"`
	Start         *string  `json:"start"`
	End           *string  `json:"end"`
}

// Create runs an export job for the filtered event set.
// POST /api/v1/exports
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var req exportRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.EventType != "" && !model.ValidEventType(req.EventType) {
		writeError(w, http.StatusBadRequest, "invalid event_type")
		return
	}

	filter := model.EventFilter{
		CameraID:      req.CameraID,
		EventType:     req.EventType,
		MinConfidence: req.MinConfidence,
	}
	if req.Start != nil {
		t, err := parseRFC3339(*req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC 3339")
			return
		}
		filter.Start = t
	}
	if req.End != nil {
		t, err := parseRFC3339(*req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC 3339")
			return
		}
		filter.End = t
	}

	job, err := h.exporter.Run(r.Context(), principal.OrgID, principal.AdminID, filter)
	if err != nil {
		h.logger.Error("run export", "org_id", principal.OrgID, "error", err)
		if job != nil {
			writeJSON(w, http.StatusOK, job)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to run export")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// List returns the organization's export jobs.
// GET /api/v1/exports
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	jobs, err := h.store.ListExportJobs(r.Context(), principal.OrgID)
	if err != nil {
		h.logger.Error("list exports", "org_id", principal.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{Data: jobs})
}

// Get returns a single export job, including its status.
// GET /api/v1/exports/{id}
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	job, err := h.store.GetExportJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "export not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load export")
		return
	}
	if job.OrgID != principal.OrgID {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Download streams a completed export file in the requested format.
// GET /api/v1/exports/{id}/download?format=csv|parquet
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	job, err := h.store.GetExportJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "export not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load export")
		return
	}
	if job.OrgID != principal.OrgID {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	if job.Status != model.ExportCompleted {
		writeError(w, http.StatusConflict, "export did not complete")
		return
	}

	var path, contentType, ext string
	switch queryString(r, "format") {
	case "parquet":
		path, contentType, ext = job.ParquetPath, "application/octet-stream", "parquet"
	case "", "csv":
		path, contentType, ext = job.CSVPath, "text/csv", "csv"
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or parquet")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="events-`+job.ID+`.`+ext+`"`)
	http.ServeFile(w, r, path)
}
