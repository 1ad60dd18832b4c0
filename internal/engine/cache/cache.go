// Package cache provides a content-addressed key/value store with per-entry
// expiry. Keys are deterministic hashes over structured inputs, never raw
// strings, so logically-identical requests always collide and
// logically-different ones never do.
package cache

import (
	"context"
	"time"
)

// NoExpiry as the TTL stores an entry that never expires.
const NoExpiry = time.Duration(-1)

// Entry is a stored value with its lifecycle timestamps.
type Entry struct {
	Value          []byte    `json:"value"`
	StoredAt       time.Time `json:"stored_at"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"` // zero means never
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Expired reports whether the entry is past its expiry at the given time.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Store is the enrichment cache. Implementations treat expired or corrupt
// entries as misses, never as errors.
type Store interface {
	// Get returns the value for key, or found=false when absent or expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key. A zero ttl uses the store default;
	// NoExpiry stores the entry forever.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single entry. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}
