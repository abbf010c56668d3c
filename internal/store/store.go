// Package store provides the durable key-value store that holds all
// client-side state of a browser profile, and the typed schema of its keys.
package store

import (
	"context"
)

// Store is a string-keyed, string-valued persistent store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a single entry.
	Set(ctx context.Context, key, value string) error

	// SetMany writes all entries in one atomic operation.
	SetMany(ctx context.Context, entries map[string]string) error

	// Remove deletes all keys in one atomic operation. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
