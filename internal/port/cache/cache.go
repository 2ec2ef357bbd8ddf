// Package cache defines the port interface for the in-process snapshot
// cache. Its one consumer is the routing service, which keeps the
// enabled rule set hot between resolves.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte snapshots by key. Get reports a miss through
// the bool, never through the error. A zero ttl means the implementation
// may evict at will.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
