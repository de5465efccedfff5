package ratelimit

import (
	"context"
	"time"
)

// Store is the shared counter store. Implementations must make Increment
// atomic across all processes that share the store.
type Store interface {
	// Increment adds one to key, creating it at 1 when absent or expired.
	Increment(ctx context.Context, key string) (int64, error)
	// ExpireIfUnset sets ttl on key only when key exists without an expiry.
	ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) error
	// Peek returns the live count and remaining TTL, or zeros when key is absent.
	Peek(ctx context.Context, key string) (count int64, ttl time.Duration, err error)
	Delete(ctx context.Context, key string) error
}

// AtomicStore performs the increment and the first-increment expiry as one
// operation. The limiter prefers it when a store provides it.
type AtomicStore interface {
	Store
	IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
