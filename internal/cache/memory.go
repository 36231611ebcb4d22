package cache

import (
	"context"
	"sync"
	"time"

	"rainy/internal/catalog"
)

type memoryEntry struct {
	caps    catalog.Capabilities
	expires time.Time
}

// MemoryCache implements Cache in process memory.
// This is suitable for a single client process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache; ttl <= 0 uses DefaultTTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the entry for key
func (c *MemoryCache) Get(_ context.Context, key string) (*catalog.Capabilities, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, nil
	}
	caps := e.caps
	return &caps, nil
}

// Set stores a copy of caps under key
func (c *MemoryCache) Set(_ context.Context, key string, caps *catalog.Capabilities) error {
	if caps == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{caps: *caps, expires: c.now().Add(c.ttl)}
	return nil
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}
