package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/server/middleware"
	"github.com/sightgrid/sightgrid/internal/store"
)

// CameraHandler manages the organization's camera registry.
type CameraHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewCameraHandler creates a new CameraHandler.
func NewCameraHandler(st *store.Store, logger *slog.Logger) *CameraHandler {
	return &CameraHandler{store: st, logger: logger}
}

// cameraRequest deliberately has no rtsp_url field: stream URLs are
// operator-provisioned through the CLI only and must never be settable
// through the API.
type cameraRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Timezone string `json:"timezone"`
	IsActive *bool  `json:"is_active"`
}

// List returns the organization's cameras. RTSP URLs are never included
// in responses.
// GET /api/v1/cameras
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	cameras, err := h.store.ListCameras(r.Context(), principal.OrgID)
	if err != nil {
		h.logger.Error("list cameras", "org_id", principal.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list cameras")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{Data: cameras})
}

// Get returns a single camera.
// GET /api/v1/cameras/{id}
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	cam, err := h.store.GetCameraForOrg(r.Context(), chi.URLParam(r, "id"), principal.OrgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "camera not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load camera")
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

// Create registers a new camera.
// POST /api/v1/cameras
func (h *CameraHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var req cameraRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		writeError(w, http.StatusBadRequest, "invalid timezone")
		return
	}

	cam := &model.Camera{
		ID:       uuid.NewString(),
		OrgID:    principal.OrgID,
		Name:     req.Name,
		Location: req.Location,
		Timezone: tz,
		IsActive: true,
	}
	if req.IsActive != nil {
		cam.IsActive = *req.IsActive
	}

	if err := h.store.CreateCamera(r.Context(), cam); err != nil {
		h.logger.Error("create camera", "org_id", principal.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create camera")
		return
	}
	writeJSON(w, http.StatusCreated, cam)
}

// Update modifies a camera's registration.
// PATCH /api/v1/cameras/{id}
func (h *CameraHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	cam, err := h.store.GetCameraForOrg(r.Context(), chi.URLParam(r, "id"), principal.OrgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "camera not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load camera")
		return
	}

	var req cameraRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name != "" {
		cam.Name = req.Name
	}
	if req.Location != "" {
		cam.Location = req.Location
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			writeError(w, http.StatusBadRequest, "invalid timezone")
			return
		}
		cam.Timezone = req.Timezone
	}
	if req.IsActive != nil {
		cam.IsActive = *req.IsActive
	}

	if err := h.store.UpdateCamera(r.Context(), cam); err != nil {
		h.logger.Error("update camera", "camera_id", cam.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update camera")
		return
	}
	writeJSON(w, http.StatusOK, cam)
}
