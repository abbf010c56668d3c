package store

import (
	"context"
	"strings"
)

const scopeSeparator = ":"

// ScopedStore confines a Store to the keys of one browser profile. It does
// not own the underlying store.
type ScopedStore struct {
	base   Store
	prefix string
}

// Scoped returns a view of base whose keys are namespaced by profileID.
func Scoped(base Store, profileID string) *ScopedStore {
	return &ScopedStore{base: base, prefix: profileID + scopeSeparator}
}

func (s *ScopedStore) key(k string) string {
	return s.prefix + k
}

// Profile returns the profile the view is bound to.
func (s *ScopedStore) Profile() string {
	return strings.TrimSuffix(s.prefix, scopeSeparator)
}

// Get returns the value for key within the profile.
func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.base.Get(ctx, s.key(key))
}

// Set writes key within the profile.
func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.base.Set(ctx, s.key(key), value)
}

// SetMany writes all entries within the profile atomically.
func (s *ScopedStore) SetMany(ctx context.Context, entries map[string]string) error {
	scoped := make(map[string]string, len(entries))
	for k, v := range entries {
		scoped[s.key(k)] = v
	}
	return s.base.SetMany(ctx, scoped)
}

// Remove deletes keys within the profile atomically.
func (s *ScopedStore) Remove(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = s.key(k)
	}
	return s.base.Remove(ctx, scoped...)
}

// Ping pings the underlying store.
func (s *ScopedStore) Ping(ctx context.Context) error {
	return s.base.Ping(ctx)
}

// Close is a no-op; the underlying store is closed by its owner.
func (s *ScopedStore) Close() error {
	return nil
}
