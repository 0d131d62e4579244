package store

import "errors"

// ErrNotFound is returned when a requested resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing
// unique value, e.g. an event re-submitted with the same idempotency
// token.
var ErrDuplicate = errors.New("duplicate")
