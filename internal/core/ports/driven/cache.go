package driven

import (
	"context"
	"time"
)

// Cache abstracts a key-value cache with per-key expiration.
// Implementations connect lazily on first use and must surface a failed
// connection attempt rather than swallow it. There is no eviction policy
// beyond the per-key TTL.
type Cache interface {
	// Get returns the value for key, or domain.ErrNotFound if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
