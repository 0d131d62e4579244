package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BodyHash returns the lowercase hex SHA-256 digest of the raw request
// body. The digest must be computed over the exact bytes received on the
// wire; re-serializing a parsed body can change byte content and
// invalidate the signature.
func BodyHash(rawBody []byte) string {
	h := sha256.Sum256(rawBody)
	return hex.EncodeToString(h[:])
}

// CanonicalMessage builds the fixed-format string the HMAC signature is
// computed over:
//
//	method "\n" path "\n" timestamp "\n" nonce "\n" hex(sha256(rawBody))
//
// It is byte-for-byte reproducible from the same inputs; any change to
// the body, path, method, timestamp, or nonce changes the result.
func CanonicalMessage(method, path, timestamp, nonce string, rawBody []byte) string {
	return strings.Join([]string{method, path, timestamp, nonce, BodyHash(rawBody)}, "\n")
}
