package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps findings for the current process lifetime. Entries
// expire on their TTL and are swept periodically.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates an in-memory cache with the given default TTL.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(defaultTTL, cleanupInterval)}
}

// Get returns the cached payload for key, if present and unexpired.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	value, found := c.store.Get(key)
	if !found {
		return nil, false
	}
	payload, ok := value.([]byte)
	return payload, ok
}

// Set stores payload under key; ttl 0 uses the cache default.
func (c *MemoryCache) Set(key string, payload []byte, ttl time.Duration) error {
	c.store.Set(key, payload, ttl)
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

// Clear drops every entry.
func (c *MemoryCache) Clear() error {
	c.store.Flush()
	return nil
}
