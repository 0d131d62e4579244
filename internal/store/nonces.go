package store

import (
	"context"
	"fmt"
	"time"
)

// TryConsumeNonce atomically records the (apiKeyID, nonce) pair with an
// expiry of now+ttl. It returns true if this call consumed the nonce and
// false if the pair was already present (a replay). The insert-or-reject
// is a single statement so two concurrent requests presenting the same
// pair can never both win, even across server instances.
func (s *Store) TryConsumeNonce(ctx context.Context, apiKeyID, nonce string, ttl time.Duration) (bool, error) {
	expires := time.Now().UTC().Add(ttl)

	insert := "INSERT INTO ingest_nonces (api_key_id, nonce, expires_at) VALUES (?, ?, ?)"
	q := s.rebind(s.dialect.insertIgnore(insert))

	result, err := s.db.ExecContext(ctx, q, apiKeyID, nonce, expires)
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume nonce rows affected: %w", err)
	}
	return n == 1, nil
}

// PurgeExpiredNonces deletes nonce records past their expiry and returns
// the number removed. Purging is maintenance only; replay of a purged
// nonce is still rejected by the timestamp freshness check, which is
// tighter than the nonce retention window.
func (s *Store) PurgeExpiredNonces(ctx context.Context) (int64, error) {
	q := s.rebind("DELETE FROM ingest_nonces WHERE expires_at < ?")
	result, err := s.db.ExecContext(ctx, q, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge nonces: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge nonces rows affected: %w", err)
	}
	return n, nil
}
