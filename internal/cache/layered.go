package cache

import "time"

// LayeredCache fronts the disk cache with a memory layer. Disk hits are
// promoted to memory so the file is read at most once per key.
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory-over-disk vector cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get checks memory first, then disk, promoting disk hits
func (c *LayeredCache) Get(key string) ([]float32, bool) {
	if vec, found := c.memory.Get(key); found {
		return vec, true
	}
	if vec, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, vec, 0)
		return vec, true
	}
	return nil, false
}

// Set writes through to both layers
func (c *LayeredCache) Set(key string, vec []float32, ttl time.Duration) error {
	if err := c.memory.Set(key, vec, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, vec, ttl)
}

// Delete removes the key from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	_ = c.disk.Delete(key)
	return nil
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}
