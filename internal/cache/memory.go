package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps vectors in process memory. Fast path for repeated
// Map runs within one engine lifetime; nothing survives a restart.
type MemoryCache struct {
	vectors *gocache.Cache
}

// NewMemoryCache creates an in-memory vector cache. Expired entries are
// swept at the cleanup interval.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{vectors: gocache.New(defaultTTL, cleanupInterval)}
}

// Get returns the cached vector for a key, if present and unexpired
func (c *MemoryCache) Get(key string) ([]float32, bool) {
	val, found := c.vectors.Get(key)
	if !found {
		return nil, false
	}
	vec, ok := val.([]float32)
	return vec, ok
}

// Set stores a vector under the key. A zero TTL uses the cache default.
func (c *MemoryCache) Set(key string, vec []float32, ttl time.Duration) error {
	c.vectors.Set(key, vec, ttl)
	return nil
}

// Delete drops one entry
func (c *MemoryCache) Delete(key string) error {
	c.vectors.Delete(key)
	return nil
}

// Clear drops every entry
func (c *MemoryCache) Clear() error {
	c.vectors.Flush()
	return nil
}
