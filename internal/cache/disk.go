package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DiskCache persists vectors as one file per key, so embeddings survive
// engine restarts without a dedicated store table.
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk-backed vector cache rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl}
}

type vectorEntry struct {
	Vector    []float32 `json:"vector"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get reads the vector for a key. Expired files are removed on read.
func (c *DiskCache) Get(key string) ([]float32, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}

	var entry vectorEntry
	if err := json.Unmarshal(raw, &entry); err != nil || len(entry.Vector) == 0 {
		// Corrupt files are dropped, never served
		_ = os.Remove(c.path(key))
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(c.path(key))
		return nil, false
	}
	return entry.Vector, true
}

// Set writes the vector for a key. A zero TTL uses the cache default.
func (c *DiskCache) Set(key string, vec []float32, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	raw, err := json.Marshal(vectorEntry{Vector: vec, ExpiresAt: time.Now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(c.path(key), raw, 0o644); err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}
	return nil
}

// Delete removes one vector file
func (c *DiskCache) Delete(key string) error {
	return os.Remove(c.path(key))
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+".vec")
}
