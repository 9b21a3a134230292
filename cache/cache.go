// cache/cache.go
package cache

import (
	"sync"
	"time"
)

// entry wraps a cached value with its insertion time. Entries are only ever
// replaced whole, never mutated in place.
type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a TTL-bounded key-value store for one entity population.
//
// Staleness is two-tier: Get returns whatever is present regardless of the
// entry's age, and IsExpired reports whether the cache as a whole has gone
// past its validity since the last full seed. Callers decide when an expired
// cache warrants a full reseed; individual entries are never evicted on read.
type Cache[V any] struct {
	mu            sync.RWMutex
	entries       map[string]entry[V]
	keyFn         func(V) string
	cacheValidity time.Duration
	lastSeededAt  time.Time
}

// New creates a cache whose keys are derived from values by keyFn.
func New[V any](keyFn func(V) string) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		keyFn:   keyFn,
	}
}

// SetCacheValidity configures the TTL. Must be called before first use.
func (c *Cache[V]) SetCacheValidity(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cacheValidity = d
}

// Seed replaces the cache contents with a full population and resets the
// whole-cache expiry clock.
func (c *Cache[V]) Seed(values []V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries = make(map[string]entry[V], len(values))
	for _, v := range values {
		c.entries[c.keyFn(v)] = entry[V]{value: v, insertedAt: now}
	}
	c.lastSeededAt = now
}

// SeedSize clears the cache, pre-sized for an expected population, and
// resets the whole-cache expiry clock.
func (c *Cache[V]) SeedSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V], n)
	c.lastSeededAt = time.Now()
}

// Get returns the cached value for key. A present entry is returned even if
// it is older than the cache validity.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put inserts or overwrites a fresh entry under the value's derived key.
func (c *Cache[V]) Put(v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.keyFn(v)] = entry[V]{value: v, insertedAt: time.Now()}
}

// Remove deletes the entry for key. Removing an absent key is a no-op.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// IsExpired reports whether the elapsed time since the last full seed has
// reached the configured validity.
func (c *Cache[V]) IsExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return time.Since(c.lastSeededAt) >= c.cacheValidity
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
