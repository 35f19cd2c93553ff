package cache

import "time"

// LayeredCache fronts the disk cache with the memory cache; disk hits are
// promoted to memory.
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache builds the memory+disk combination the pipeline uses.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get checks memory first, then disk.
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if payload, found := c.memory.Get(key); found {
		return payload, true
	}
	if payload, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, payload, 0)
		return payload, true
	}
	return nil, false
}

// Set writes through to both layers.
func (c *LayeredCache) Set(key string, payload []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, payload, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, payload, ttl)
}

// Delete removes key from both layers.
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

// Clear drops both layers.
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}
