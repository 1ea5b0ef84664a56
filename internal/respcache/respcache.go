// Package respcache provides a bounded in-memory TTL cache with
// at-most-one in-flight computation per key. Entries are evicted
// least-recently-inserted (not accessed) so eviction order stays
// predictable under read-heavy traffic.
package respcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes computed values by key. The zero value is not usable; use New.
type Cache[V any] struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
	order   []string // insertion order, oldest first

	group singleflight.Group
}

type entry[V any] struct {
	val        V
	insertedAt time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock injects a clock, letting tests control entry expiry without
// sleeping.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// New creates a cache holding up to capacity entries for ttl each.
// A non-positive ttl or capacity disables memoization: every call computes.
func New[V any](ttl time.Duration, capacity int, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[string]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached value for key, or runs compute and caches
// the result. Concurrent callers for the same key share a single in-flight
// computation. A compute error is returned to all waiters and nothing is
// cached. The second return value reports whether the value came from cache.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, bool, error) {
	if c.ttl <= 0 || c.capacity <= 0 {
		v, err := compute(ctx)
		return v, false, err
	}

	if v, ok := c.lookup(key); ok {
		return v, true, nil
	}

	vi, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent flight may have populated the entry between our
		// lookup and joining the group.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.insert(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return vi.(V), false, nil
}

// Len reports the number of stored entries, including any not yet expired.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// lookup returns a live entry, deleting it if expired.
func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.remove(key)
		var zero V
		return zero, false
	}
	return e.val, true
}

func (c *Cache[V]) insert(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.remove(key)
	}
	for len(c.entries) >= c.capacity {
		c.remove(c.order[0])
	}
	c.entries[key] = entry[V]{val: v, insertedAt: c.now()}
	c.order = append(c.order, key)
}

// remove deletes key from entries and order. Callers hold c.mu.
func (c *Cache[V]) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
