package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
)

// CreateAPIKey inserts a new API key record. The fingerprint and prefix
// must already be set (see service.GenerateAPIKey). The ID and CreatedAt
// fields are populated after a successful insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys (id, name, org_id, fingerprint, key_prefix, revoked, created_at)
		VALUES (:id, :name, :org_id, :fingerprint, :key_prefix, :revoked, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, key); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("insert api key: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAPIKeyByFingerprint looks up an API key by the SHA-256 fingerprint
// of its raw key. Revoked keys are returned; revocation is the caller's
// check, so that a revoked key still resolves for audit purposes.
func (s *Store) GetAPIKeyByFingerprint(ctx context.Context, fingerprint string) (*model.APIKey, error) {
	var key model.APIKey
	q := s.rebind("SELECT * FROM api_keys WHERE fingerprint = ?")
	if err := s.db.GetContext(ctx, &key, q, fingerprint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by fingerprint: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys for an organization, newest first.
// Pass an empty orgID for all organizations.
func (s *Store) ListAPIKeys(ctx context.Context, orgID string) ([]model.APIKey, error) {
	var keys []model.APIKey
	var err error
	if orgID == "" {
		err = s.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys ORDER BY created_at DESC")
	} else {
		q := s.rebind("SELECT * FROM api_keys WHERE org_id = ? ORDER BY created_at DESC")
		err = s.db.SelectContext(ctx, &keys, q, orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks an API key as revoked by ID. Records are never
// physically deleted.
func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	q := s.rebind("UPDATE api_keys SET revoked = " + s.dialect.boolTrue + " WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
