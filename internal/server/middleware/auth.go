package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sightgrid/sightgrid/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the dashboard operator identity making the request. All
// dashboard reads and writes are scoped to the principal's organization.
type Principal struct {
	AdminID string
	Email   string
	OrgID   string
}

// Authenticate returns an HTTP middleware that validates the JWT bearer
// token on dashboard requests. Ingest requests never pass through here,
// they carry their own HMAC scheme.
//
// On success, a Principal is attached to the request context. On failure,
// a 401 JSON error response is returned.
func Authenticate(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "Authentication required. Provide a Bearer token.")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			p, err := authSvc.ValidateJWT(r.Context(), token)
			if err != nil {
				writeAuthError(w, "Invalid token")
				return
			}

			principal := &Principal{
				AdminID: p.AdminID,
				Email:   p.Email,
				OrgID:   p.OrgID,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if the request did not pass through Authenticate.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    http.StatusUnauthorized,
			"message": message,
		},
	})
}
