package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache holds embedding vectors keyed by content hash. Entries expire;
// a miss is always safe because the embedder recomputes on demand.
type Cache interface {
	Get(key string) ([]float32, bool)
	Set(key string, vec []float32, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// EmbeddingKey generates a cache key for one embedded text. The model name
// is part of the key so switching models never serves stale vectors.
func EmbeddingKey(embModel, text string) string {
	hash := sha256.Sum256([]byte(embModel + "\x00" + text))
	return "veridex:emb:v1:" + hex.EncodeToString(hash[:])
}
