package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per client IP
// to the specified number per minute. Uses a sliding window algorithm.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitByAPIKey returns an HTTP middleware that limits ingest
// requests per device credential rather than per IP. Cameras behind the
// same NAT share an address, so IP limiting would let one chatty device
// starve the rest of the fleet.
func RateLimitByAPIKey(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if key := r.Header.Get("x-api-key"); key != "" {
				return key, nil
			}
			return r.RemoteAddr, nil
		}),
	)
}
