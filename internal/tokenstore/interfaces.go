package tokenstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("not found")

// TokenStore reads and writes credential fields to persistent storage.
//
// Set and Delete operate on batches so related fields (a token and its expiry)
// are always written and removed together.
type TokenStore interface {
	// Get returns the stored value for key. Returns ErrNotFound if the key is missing or empty.
	Get(ctx context.Context, key string) (string, error)

	// Set persists all given values in a single write. Returns error if the storage
	// backend is read-only (e.g., environment variables) or if the write fails.
	Set(ctx context.Context, values map[string]string) error

	// Delete removes the given keys in a single write. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
