package model

import "time"

// APIKey represents a credential issued to a camera/edge device or
// integration. The raw key is never stored; only a SHA-256 fingerprint
// (used for lookup) and a short prefix for identification are persisted.
// Records are revoked, never deleted, so the audit trail stays intact.
type APIKey struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OrgID       string    `json:"org_id" db:"org_id"`
	Fingerprint string    `json:"-" db:"fingerprint"` // SHA-256 hex of the raw key, never expose
	KeyPrefix   string    `json:"key_prefix" db:"key_prefix"`
	Revoked     bool      `json:"revoked" db:"revoked"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IngestNonce is a consumed (api_key_id, nonce) pair. A row exists from
// the moment a signed request first validates until the retention window
// ends and the garbage collector purges it. The uniqueness constraint on
// (api_key_id, nonce) is what makes nonce consumption atomic across all
// server instances sharing the store.
type IngestNonce struct {
	APIKeyID  string    `json:"api_key_id" db:"api_key_id"`
	Nonce     string    `json:"nonce" db:"nonce"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}
