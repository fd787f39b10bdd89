// Package embed provides text embedding for semantic retrieval.
//
// The Gemini embedder is the production provider; the static embedder is
// a deterministic offline fallback used in tests and air-gapped setups.
package embed

import (
	"context"
	"math"
	"strings"

	"github.com/geoflow-cds/geoflow/internal/config"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider is reachable and ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// New builds the configured embedder wrapped with an LRU cache.
// Construction fails when the provider is unreachable.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var inner Embedder

	switch strings.ToLower(cfg.Provider) {
	case "static":
		inner = NewStaticEmbedder()
	case "gemini":
		g, err := NewGeminiEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		if !g.Available(ctx) {
			_ = g.Close()
			return nil, geoerrors.EmbeddingUnavailable("gemini", nil).
				WithSuggestion("check GEOFLOW_API_KEY and network connectivity")
		}
		inner = g
	default:
		return nil, geoerrors.Newf(geoerrors.ErrCodeConfigInvalid,
			"unknown embeddings provider %q", cfg.Provider)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// normalizeVector returns a unit-length copy of v. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
