// Package cache provides a TTL-bounded result cache keyed by content
// fingerprint, used to short-circuit repeated enrichment of identical inputs.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/patchflow/patchflow/internal/clock"
)

// DefaultTTL is the default entry lifetime
const DefaultTTL = 5 * time.Minute

// Cache is a thread-safe TTL cache. Expired entries are evicted lazily on
// read; unread stale entries may accumulate until the optional background
// sweep removes them.
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
	ttl   time.Duration
	clock clock.Clock
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// New creates a cache with the given TTL
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		clock: clock.Real{},
	}
}

// WithClock overrides the cache's clock (used in tests)
func (c *Cache[V]) WithClock(cl clock.Clock) *Cache[V] {
	c.clock = cl
	return c
}

// Get returns the stored value when the entry is younger than the TTL.
// An expired entry is deleted and reported as a miss: no reader ever
// observes a value older than the TTL.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.clock.Now().Sub(e.insertedAt) >= c.ttl {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

// Put stores a value under the key, unconditionally overwriting any prior
// entry and refreshing its timestamp.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, insertedAt: c.clock.Now()}
}

// Len returns the number of entries currently held, expired or not
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// StartSweep evicts expired entries every interval until ctx is canceled.
// Purely an occupancy bound; the Get/Put contract is unchanged.
func (c *Cache[V]) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	for key, e := range c.items {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.items, key)
		}
	}
}
