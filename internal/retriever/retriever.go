// Package retriever implements the hybrid retrieval engine: a semantic
// HNSW leg and a lexical BM25 leg fused by weighted reciprocal rank.
package retriever

import "context"

// ScoredChunk is one ranked hit from a single retrieval leg. Score is
// leg-specific (cosine similarity or BM25) and only comparable within
// the same leg; fusion uses ranks, not raw scores.
type ScoredChunk struct {
	ID    string
	Score float64
}

// Retriever returns the top-k chunks for a query, ordered best first.
// k is a per-call parameter; retrievers hold no per-query mutable state.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]ScoredChunk, error)
	Name() string
}
