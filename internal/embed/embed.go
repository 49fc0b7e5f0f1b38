package embed

import (
	"context"
	"fmt"

	"github.com/veridexhq/veridex/internal/model"
)

// Embedder converts text to fixed-length vectors. This is the whole
// contract the core needs from the external embedding capability.
type Embedder interface {
	// EmbedBatch embeds texts in order; the result has one vector per
	// input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length this embedder produces
	Dimensions() int
}

// NewEmbedder creates an embedder from configuration. An empty provider
// returns nil: indexing is disabled and artifacts queue until one is
// configured.
func NewEmbedder(cfg model.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai)", cfg.Provider)
	}
}
