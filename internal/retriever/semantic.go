package retriever

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/geoflow-cds/geoflow/internal/corpus"
	"github.com/geoflow-cds/geoflow/internal/embed"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

// HNSW construction parameters tuned for corpora in the tens of
// thousands of chunks.
const (
	hnswM        = 16
	hnswEfSearch = 64
	hnswMl       = 0.25
)

// SemanticRetriever retrieves by embedding similarity over an in-memory
// HNSW graph. Graph keys are corpus positions, so key order is corpus
// order and drives deterministic tie-breaks.
type SemanticRetriever struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	embedder embed.Embedder
	corp     *corpus.Corpus
	dims     int
}

// BuildSemanticRetriever embeds every corpus chunk and indexes it.
// An embedding failure here is fatal: the engine must not start with a
// partial semantic index.
func BuildSemanticRetriever(ctx context.Context, corp *corpus.Corpus, embedder embed.Embedder, batchSize int) (*SemanticRetriever, error) {
	if batchSize <= 0 {
		batchSize = 32
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = hnswM
	graph.EfSearch = hnswEfSearch
	graph.Ml = hnswMl

	r := &SemanticRetriever{
		graph:    graph,
		embedder: embedder,
		corp:     corp,
		dims:     embedder.Dimensions(),
	}

	chunks := corp.Chunks()
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}

		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrCodeEmbedFailed,
				"failed to embed corpus batch")
		}

		for i, vec := range vectors {
			if len(vec) != r.dims {
				return nil, geoerrors.Newf(geoerrors.ErrCodeDimensionMismatch,
					"embedding has %d dimensions, expected %d", len(vec), r.dims)
			}
			normalized := make([]float32, len(vec))
			copy(normalized, vec)
			normalizeInPlace(normalized)
			graph.Add(hnsw.MakeNode(uint64(start+i), normalized))
		}
	}

	slog.Info("semantic index built", "chunks", len(chunks), "dimensions", r.dims)
	return r, nil
}

// Retrieve implements Retriever. A query-time embedding failure fails
// only this query.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if k <= 0 {
		return nil, geoerrors.InvalidArgument("k must be positive")
	}
	if r.graph.Len() == 0 {
		return []ScoredChunk{}, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrCodeEmbedFailed,
			"failed to embed query")
	}
	if len(vec) != r.dims {
		return nil, geoerrors.Newf(geoerrors.ErrCodeDimensionMismatch,
			"query embedding has %d dimensions, expected %d", len(vec), r.dims)
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	nodes := r.graph.Search(normalized, k)

	results := make([]ScoredChunk, 0, len(nodes))
	for _, node := range nodes {
		distance := r.graph.Distance(normalized, node.Value)
		results = append(results, ScoredChunk{
			ID:    corpus.OrdinalID(int(node.Key)),
			Score: 1.0 - float64(distance)/2.0,
		})
	}

	// HNSW returns nearest-first, but equal-similarity neighbors come
	// back in insertion-dependent order. Re-sort with the corpus-order
	// tie-break to keep results deterministic.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// Name implements Retriever.
func (r *SemanticRetriever) Name() string {
	return "semantic"
}

// Len returns the number of indexed chunks.
func (r *SemanticRetriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Len()
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
