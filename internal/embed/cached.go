package embed

import (
	"context"

	"github.com/veridexhq/veridex/internal/cache"
)

// CachedEmbedder fronts another embedder with a content-hash cache, so
// re-mapping an unchanged artifact never re-embeds its chunks.
type CachedEmbedder struct {
	inner    Embedder
	cache    cache.Cache
	embModel string
}

// NewCachedEmbedder wraps an embedder with a cache layer
func NewCachedEmbedder(inner Embedder, c cache.Cache, embModel string) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, embModel: embModel}
}

// Dimensions returns the inner embedder's vector length
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// EmbedBatch serves cached vectors and embeds only the misses
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := e.cache.Get(cache.EmbeddingKey(e.embModel, text)); ok && len(vec) > 0 {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vectors, err := e.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vectors {
			out[missIdx[j]] = vec
			_ = e.cache.Set(cache.EmbeddingKey(e.embModel, missTexts[j]), vec, 0)
		}
	}
	return out, nil
}
