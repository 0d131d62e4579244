package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/server/middleware"
	"github.com/sightgrid/sightgrid/internal/service"
	"github.com/sightgrid/sightgrid/internal/store"
)

// SystemHandler manages operator sessions, admin accounts, and the
// ingest API keys issued to camera devices.
type SystemHandler struct {
	store     *store.Store
	authSvc   *service.AuthService
	jwtExpiry time.Duration
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(st *store.Store, authSvc *service.AuthService, jwtExpiry time.Duration) *SystemHandler {
	return &SystemHandler{
		store:     st,
		authSvc:   authSvc,
		jwtExpiry: jwtExpiry,
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   string `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	OrgID     string `json:"org_id"`
}

// Login authenticates an operator and returns a JWT session token.
// POST /api/v1/system/admin/session
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, admin, err := h.authSvc.Login(r.Context(), req.Email, req.Password, h.jwtExpiry)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(h.jwtExpiry.Seconds()),
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
		OrgID:     admin.OrgID,
	})
}

// Me returns the authenticated operator's identity.
// GET /api/v1/system/admin/session
func (h *SystemHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"admin_id": principal.AdminID,
		"email":    principal.Email,
		"org_id":   principal.OrgID,
	})
}

// ---------------------------------------------------------------------------
// Admin accounts
// ---------------------------------------------------------------------------

type createAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	OrgID    string `json:"org_id"`
}

// CreateAdmin registers a new operator account. The first account may be
// created without authentication (first-run bootstrap); every subsequent
// account requires an authenticated session in the same organization.
// POST /api/v1/system/admin
func (h *SystemHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	hasAdmin, err := h.store.HasAnyAdmin(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check existing admins")
		return
	}

	// The route is mounted outside the session middleware so the
	// first-run bootstrap can reach it; past that point a valid
	// session is checked here.
	orgID := req.OrgID
	if hasAdmin {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeAdminAuthRequired(w)
			return
		}
		p, err := h.authSvc.ValidateJWT(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeAdminAuthRequired(w)
			return
		}
		orgID = p.OrgID
	}
	if orgID == "" {
		orgID = uuid.NewString()
	}

	admin := &model.Admin{
		Email:        req.Email,
		OrgID:        orgID,
		PasswordHash: service.HashPassword(req.Password),
		Name:         req.Name,
		IsActive:     true,
	}
	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "An admin with that email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create admin")
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

func writeAdminAuthRequired(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "Authentication required to create additional admins")
}

// ---------------------------------------------------------------------------
// Ingest API keys
// ---------------------------------------------------------------------------

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

// createAPIKeyResponse carries the raw key. It is returned exactly once;
// only the fingerprint is stored.
type createAPIKeyResponse struct {
	Key    string        `json:"key"`
	Record *model.APIKey `json:"record"`
}

// CreateAPIKey mints an ingest credential for a camera device.
// POST /api/v1/system/api-keys
func (h *SystemHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var req createAPIKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	raw, record, err := service.GenerateAPIKey(req.Name, principal.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate key")
		return
	}
	if err := h.store.CreateAPIKey(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store key")
		return
	}
	writeJSON(w, http.StatusCreated, createAPIKeyResponse{Key: raw, Record: record})
}

// ListAPIKeys returns the organization's issued keys.
// GET /api/v1/system/api-keys
func (h *SystemHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	keys, err := h.store.ListAPIKeys(r.Context(), principal.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list keys")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{Data: keys})
}

// RevokeAPIKey marks a key revoked. Revoked keys fail ingest
// authentication but keep their nonce history.
// DELETE /api/v1/system/api-keys/{id}
func (h *SystemHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	id := chi.URLParam(r, "id")
	keys, err := h.store.ListAPIKeys(r.Context(), principal.OrgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list keys")
		return
	}
	owned := false
	for _, k := range keys {
		if k.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to revoke key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
