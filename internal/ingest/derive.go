package ingest

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100_000
	kdfKeyLen     = 32
)

// DeriveKey derives the per-key HMAC signing secret from a raw API key
// and the server-side salt using PBKDF2-SHA256. Deterministic, so the
// derived key is never stored; deliberately slow, so recovering it from
// intercepted traffic is infeasible even if the salt leaks. The salt is
// process-wide configuration, not per-key.
func DeriveKey(apiKey, salt string) []byte {
	return pbkdf2.Key([]byte(apiKey), []byte(salt), kdfIterations, kdfKeyLen, sha256.New)
}

// Fingerprint returns the lowercase hex SHA-256 of the raw API key. It
// is used only to look the key record up in the registry and is computed
// independently of the derived signing key; neither is recoverable from
// the other without the salt.
func Fingerprint(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}
