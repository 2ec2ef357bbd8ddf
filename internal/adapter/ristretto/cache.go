// Package ristretto backs the cache port with an in-process ristretto
// instance. It holds the routing service's enabled-rule snapshots.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache adapts a ristretto cache to the cache port. Cost accounting is
// by value size, so maxCostBytes caps the total bytes held.
type Cache struct {
	rc *ristretto.Cache[string, []byte]
}

// New creates the cache with the given byte budget.
func New(maxCostBytes int64) (*Cache, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// Counters track access frequency; ristretto recommends ~10x the
		// expected item count. Snapshots average around 100 bytes per rule.
		NumCounters: maxCostBytes / 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{rc: rc}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	return val, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.rc.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.rc.Del(key)
	return nil
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.rc.Close()
}
