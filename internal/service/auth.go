package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sightgrid/sightgrid/internal/ingest"
	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// JWTPrincipal is the admin identity carried by a validated session token.
type JWTPrincipal struct {
	AdminID string
	Email   string
	OrgID   string
}

// AuthService issues and validates admin session tokens and mints ingest
// API keys.
type AuthService struct {
	store     *store.Store
	jwtSecret []byte
}

func NewAuthService(st *store.Store, jwtSecret string) *AuthService {
	return &AuthService{
		store:     st,
		jwtSecret: []byte(jwtSecret),
	}
}

// Login verifies an admin's email/password and returns a session token.
func (s *AuthService) Login(ctx context.Context, email, password string, ttl time.Duration) (string, *model.Admin, error) {
	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !admin.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if HashPassword(password) != admin.PasswordHash {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueJWT(ctx, admin.ID, admin.Email, admin.OrgID, ttl)
	if err != nil {
		return "", nil, fmt.Errorf("issue session token: %w", err)
	}

	_ = s.store.UpdateAdminLastLogin(ctx, admin.ID)
	return token, admin, nil
}

// ValidateJWT verifies a JWT bearer token and returns the admin identity.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*JWTPrincipal, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	return &JWTPrincipal{
		AdminID: claims.AdminID,
		Email:   claims.Email,
		OrgID:   claims.OrgID,
	}, nil
}

// IssueJWT creates a new signed session token for the given admin.
func (s *AuthService) IssueJWT(ctx context.Context, adminID, email, orgID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		AdminID: adminID,
		Email:   email,
		OrgID:   orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "sightgrid",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

type jwtClaims struct {
	AdminID string `json:"admin_id"`
	Email   string `json:"email"`
	OrgID   string `json:"org_id"`
	jwt.RegisteredClaims
}

// HashPassword returns the hex-encoded SHA-256 hash of a password.
func HashPassword(password string) string {
	h := sha256.Sum256([]byte(password))
	return hex.EncodeToString(h[:])
}

// GenerateAPIKey mints a raw device key and the record to persist for
// it. The raw key is returned to the caller exactly once and is never
// retrievable again; only the fingerprint and a short prefix derived
// from it are stored.
func GenerateAPIKey(name, orgID string) (string, *model.APIKey, error) {
	randomBytes := make([]byte, 24)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, fmt.Errorf("generate random key: %w", err)
	}
	raw := "pk_live_" + hex.EncodeToString(randomBytes)

	fingerprint := ingest.Fingerprint(raw)
	record := &model.APIKey{
		Name:        name,
		OrgID:       orgID,
		Fingerprint: fingerprint,
		KeyPrefix:   fingerprint[:8],
	}
	return raw, record, nil
}
