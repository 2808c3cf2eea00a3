package services

import (
	"sync"
	"time"
)

// DedupeCache suppresses repeated event identifiers within a TTL window.
// The cache is process-local: each running instance keeps its own entries and
// they are lost on restart, so dedupe is best-effort across deployments. That
// is an accepted limitation, retried deliveries are also absorbed by the
// conditional status transitions in the store.
type DedupeCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewDedupeCache creates a cache that remembers identifiers for ttl
func NewDedupeCache(ttl time.Duration) *DedupeCache {
	return &DedupeCache{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// SeenRecently reports whether id was recorded within the TTL window, and
// records it if not. The expiry sweep, the membership check and the insert all
// happen under one lock hold so two concurrent deliveries of the same id can
// never both observe "unseen". An empty id is never recorded and always
// reports false.
func (c *DedupeCache) SeenRecently(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-c.ttl)
	for key, at := range c.seen {
		if at.Before(cutoff) {
			delete(c.seen, key)
		}
	}

	if _, ok := c.seen[id]; ok {
		return true
	}
	c.seen[id] = now
	return false
}

// Len returns the number of live entries
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
