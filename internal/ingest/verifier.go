package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/store"
)

// Request headers carrying the signing scheme.
const (
	HeaderAPIKey    = "x-api-key"
	HeaderTimestamp = "x-timestamp"
	HeaderNonce     = "x-nonce"
	HeaderSignature = "x-signature"
)

const (
	// SignaturePrefix versions the signature format.
	SignaturePrefix = "v1="

	// MaxClockDrift bounds |now - x-timestamp|. It is both the replay
	// window and the tolerance for device clock skew.
	MaxClockDrift = 300 * time.Second

	// NonceTTL is how long a consumed (key, nonce) pair is retained in
	// the ledger. It exceeds MaxClockDrift so a nonce can never be
	// purged while its timestamp would still pass the freshness check.
	NonceTTL = 600 * time.Second
)

var (
	// ErrUnauthenticated covers every authentication failure: missing or
	// malformed headers, signature mismatch, unknown or revoked key, and
	// nonce replay. Callers expose a single opaque signal so an attacker
	// cannot distinguish which check failed.
	ErrUnauthenticated = errors.New("invalid signature or key")

	// ErrStale means the request timestamp drifted beyond MaxClockDrift.
	// Distinct from ErrUnauthenticated: the request is legitimate but
	// late, not forged.
	ErrStale = errors.New("stale request")
)

// NonceConsumer is the capability the replay guard needs from the nonce
// ledger: an atomic insert-or-reject of a (key, nonce) pair. Backed by
// any store with a conditional insert; never by in-process locks, since
// server instances do not share memory.
type NonceConsumer interface {
	TryConsumeNonce(ctx context.Context, apiKeyID, nonce string, ttl time.Duration) (bool, error)
}

// KeyRegistry resolves an API key fingerprint to its stored record.
type KeyRegistry interface {
	GetAPIKeyByFingerprint(ctx context.Context, fingerprint string) (*model.APIKey, error)
}

// Identity is the resolved caller of a verified ingest request.
type Identity struct {
	APIKeyID string
	OrgID    string
}

// Verifier authenticates signed ingest requests end to end: signature,
// timestamp freshness, single-use nonce, and key identity.
type Verifier struct {
	salt   string
	keys   KeyRegistry
	nonces NonceConsumer
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewVerifier creates a Verifier. The salt is the process-wide key
// derivation secret, injected here once rather than read ad hoc from the
// environment in deep call paths.
func NewVerifier(salt string, keys KeyRegistry, nonces NonceConsumer, logger *slog.Logger) *Verifier {
	return &Verifier{
		salt:   salt,
		keys:   keys,
		nonces: nonces,
		logger: logger,
		now:    time.Now,
	}
}

// VerifySignature checks the request signature over the canonical
// message for the given path. Pure verification: no side effects, no
// persistence. Returns ErrUnauthenticated on any failure.
func (v *Verifier) VerifySignature(headers http.Header, path string, rawBody []byte) error {
	apiKey := headers.Get(HeaderAPIKey)
	ts := headers.Get(HeaderTimestamp)
	nonce := headers.Get(HeaderNonce)
	sig := headers.Get(HeaderSignature)

	if apiKey == "" || ts == "" || nonce == "" || !strings.HasPrefix(sig, SignaturePrefix) {
		return ErrUnauthenticated
	}

	canonical := CanonicalMessage(http.MethodPost, path, ts, nonce, rawBody)
	derived := DeriveKey(apiKey, v.salt)

	mac := hmac.New(sha256.New, derived)
	mac.Write([]byte(canonical))
	expected := SignaturePrefix + hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison; a short-circuiting string compare would
	// leak how many signature bytes matched.
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrUnauthenticated
	}
	return nil
}

// checkFreshness rejects timestamps drifted beyond MaxClockDrift. A
// non-numeric timestamp is an authentication failure, not staleness.
func (v *Verifier) checkFreshness(ts string) error {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrUnauthenticated
	}
	drift := v.now().Unix() - sec
	if drift < 0 {
		drift = -drift
	}
	// Compare in integer seconds; converting the drift to a Duration
	// overflows int64 for timestamps centuries out of range.
	if drift > int64(MaxClockDrift/time.Second) {
		return ErrStale
	}
	return nil
}

// Authenticate runs the full check sequence for a signed ingest request.
// The order is strict and short-circuiting:
//
//  1. signature verification (pure; nothing is written before it passes)
//  2. timestamp freshness, unless the caller opted into allowStale
//  3. key lookup by fingerprint
//  4. atomic nonce consumption (the only write; replay rejects here)
//  5. revocation check
//
// Failures return ErrStale for freshness and ErrUnauthenticated for
// everything else, including storage errors (fail closed). allowStale is
// caller-controlled and bypasses the freshness window entirely; that is
// a documented trust decision for intentionally delayed batch uploads,
// and it widens the replay window for such callers to the nonce TTL.
func (v *Verifier) Authenticate(ctx context.Context, headers http.Header, path string, rawBody []byte, allowStale bool) (*Identity, error) {
	if err := v.VerifySignature(headers, path, rawBody); err != nil {
		return nil, err
	}

	if !allowStale {
		if err := v.checkFreshness(headers.Get(HeaderTimestamp)); err != nil {
			return nil, err
		}
	}

	fingerprint := Fingerprint(headers.Get(HeaderAPIKey))
	key, err := v.keys.GetAPIKeyByFingerprint(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			v.logger.Error("ingest key lookup failed", "error", err)
		}
		return nil, ErrUnauthenticated
	}

	// The nonce is written only now, after the signature is verified, so
	// unauthenticated callers cannot exhaust the ledger for a valid key
	// by guessing nonces.
	consumed, err := v.nonces.TryConsumeNonce(ctx, key.ID, headers.Get(HeaderNonce), NonceTTL)
	if err != nil {
		v.logger.Error("nonce consumption failed", "error", err, "key_id", key.ID)
		return nil, ErrUnauthenticated
	}
	if !consumed {
		v.logger.Warn("nonce replay rejected", "key_id", key.ID, "key_prefix", key.KeyPrefix)
		return nil, ErrUnauthenticated
	}

	if key.Revoked {
		return nil, ErrUnauthenticated
	}

	return &Identity{APIKeyID: key.ID, OrgID: key.OrgID}, nil
}

// Sign computes the signature a client would attach for the given
// request parameters. Exported for client integrations and tests.
func Sign(apiKey, salt, method, path, timestamp, nonce string, rawBody []byte) string {
	canonical := CanonicalMessage(method, path, timestamp, nonce, rawBody)
	mac := hmac.New(sha256.New, DeriveKey(apiKey, salt))
	mac.Write([]byte(canonical))
	return fmt.Sprintf("%s%s", SignaturePrefix, hex.EncodeToString(mac.Sum(nil)))
}
