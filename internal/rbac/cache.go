package rbac

import (
	"sync"
	"time"
)

// PermissionCache is the process-wide permission set cache. The TTL bounds
// staleness; explicit invalidation on logout or role change is the only
// strong-consistency guarantee. The clock is injectable so expiry is
// testable.
type PermissionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	permissions []string
	expiresAt   time.Time
}

// NewPermissionCache constructs a cache with the given TTL.
func NewPermissionCache(ttl time.Duration) *PermissionCache {
	return &PermissionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// WithClock overrides the cache clock, for tests.
func (c *PermissionCache) WithClock(now func() time.Time) *PermissionCache {
	c.now = now
	return c
}

// Get returns the cached permission set if present and not expired.
func (c *PermissionCache) Get(userID string) ([]string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.permissions, true
}

// Set stores a permission set for the TTL window.
func (c *PermissionCache) Set(userID string, permissions []string) {
	c.mu.Lock()
	c.entries[userID] = cacheEntry{permissions: permissions, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops a single user's entry. Called on logout and on any
// permission-affecting mutation.
func (c *PermissionCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// InvalidateAll drops every entry.
func (c *PermissionCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
