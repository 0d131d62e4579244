package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/server/middleware"
	"github.com/sightgrid/sightgrid/internal/store"
)

// AlertHandler manages alert rules and exposes the alert log.
type AlertHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(st *store.Store, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{store: st, logger: logger}
}

type alertRuleRequest struct {
	CameraID      string   `json:"camera_id"`
	RuleType      string   `json:"rule_type"`
	Threshold     *float64 `json:"threshold"`
	WindowSeconds int      `json:"window_seconds"`
	Enabled       *bool    `json:"enabled"`
}

// ListRules returns the organization's alert rules, optionally filtered
// by camera.
// GET /api/v1/alert-rules
func (h *AlertHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	rules, err := h.store.ListAlertRules(r.Context(), principal.OrgID, queryString(r, "camera_id"))
	if err != nil {
		h.logger.Error("list alert rules", "org_id", principal.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alert rules")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{Data: rules})
}

// CreateRule registers a new alert rule for a camera.
// POST /api/v1/alert-rules
func (h *AlertHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var req alertRuleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.CameraID == "" {
		writeError(w, http.StatusBadRequest, "camera_id is required")
		return
	}
	if req.RuleType != model.RulePersonPresence && req.RuleType != model.RuleFrequency {
		writeError(w, http.StatusBadRequest, "invalid rule_type")
		return
	}
	if req.Threshold == nil {
		writeError(w, http.StatusBadRequest, "threshold is required")
		return
	}
	if req.RuleType == model.RuleFrequency && req.WindowSeconds <= 0 {
		writeError(w, http.StatusBadRequest, "window_seconds is required for frequency rules")
		return
	}

	if _, err := h.store.GetCameraForOrg(r.Context(), req.CameraID, principal.OrgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "camera not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load camera")
		return
	}

	rule := &model.AlertRule{
		ID:            uuid.NewString(),
		OrgID:         principal.OrgID,
		CameraID:      req.CameraID,
		RuleType:      req.RuleType,
		Threshold:     *req.Threshold,
		WindowSeconds: req.WindowSeconds,
		Enabled:       true,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.store.CreateAlertRule(r.Context(), rule); err != nil {
		h.logger.Error("create alert rule", "org_id", principal.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create alert rule")
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule modifies an alert rule.
// PATCH /api/v1/alert-rules/{id}
func (h *AlertHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	rule, err := h.store.GetAlertRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load alert rule")
		return
	}
	if rule.OrgID != principal.OrgID {
		writeError(w, http.StatusNotFound, "alert rule not found")
		return
	}

	var req alertRuleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Threshold != nil {
		rule.Threshold = *req.Threshold
	}
	if req.WindowSeconds > 0 {
		rule.WindowSeconds = req.WindowSeconds
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.store.UpdateAlertRule(r.Context(), rule); err != nil {
		h.logger.Error("update alert rule", "rule_id", rule.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update alert rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ListLogs returns the organization's alert log, newest first.
// GET /api/v1/alert-logs
func (h *AlertHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	limit := queryInt(r, "limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	logs, err := h.store.ListAlertLogs(r.Context(), principal.OrgID, limit)
	if err != nil {
		h.logger.Error("list alert logs", "org_id", principal.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alert logs")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{Data: logs})
}
