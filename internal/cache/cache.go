// Package cache provides a small generic TTL cache. Callers own their
// cache instance and inject it where needed; nothing here is a process
// global.
package cache

import (
	"sync"
	"time"
)

// TTL is a concurrency-safe map whose entries expire after a fixed
// duration. Expired entries remain readable as "stale" until overwritten,
// which lets callers fall back to a last known-good value when refreshing
// fails.
type TTL[K comparable, V any] struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[K]entry[V]
}

type entry[V any] struct {
	value V
	setAt time.Time
}

// NewTTL creates a cache whose entries are fresh for ttl.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the cached value and whether it is still fresh. A stale
// value is still returned (with fresh=false) so callers can use it as a
// fallback.
func (c *TTL[K, V]) Get(key K) (value V, fresh bool, ok bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false, false
	}
	return e.value, time.Since(e.setAt) < c.ttl, true
}

// Set stores a value, restarting its freshness window.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, setAt: time.Now()}
	c.mu.Unlock()
}

// Invalidate drops one key.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge removes every entry that went stale before cutoffAge ago. Intended
// for periodic housekeeping; correctness never depends on it running.
func (c *TTL[K, V]) Purge(cutoffAge time.Duration) {
	c.mu.Lock()
	now := time.Now()
	for k, e := range c.entries {
		if now.Sub(e.setAt) > cutoffAge {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of stored entries, fresh or stale.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
