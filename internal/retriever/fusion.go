package retriever

import "sort"

// Weights are the fixed interpolation weights for the two retrieval legs.
// They must sum to 1.0.
type Weights struct {
	Semantic float64
	Lexical  float64
}

// DefaultWeights favor the semantic leg, matching the tuning used for
// the regulatory corpus.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.7, Lexical: 0.3}
}

// FusedChunk is a single result after weighted reciprocal-rank fusion.
type FusedChunk struct {
	ChunkID       string  // Chunk identifier
	Score         float64 // Combined fused score
	SemanticScore float64 // Original similarity score (preserved)
	SemanticRank  int     // Position in semantic list (1-indexed, 0 if absent)
	LexicalScore  float64 // Original BM25 score (preserved)
	LexicalRank   int     // Position in lexical list (1-indexed, 0 if absent)
}

// Fuse combines the two ranked lists by weighted reciprocal rank.
//
// A chunk at 1-based rank r in a source list contributes weight/r to its
// fused score; a chunk absent from a list contributes nothing for it.
// Chunks in both lists accumulate both contributions, which is what lifts
// corroborated results over single-leg hits.
//
// Results are sorted by: fused score (desc) → best semantic rank (asc,
// absent last) → chunk ID (asc, which is corpus order).
func Fuse(semantic, lexical []ScoredChunk, weights Weights) []FusedChunk {
	if len(semantic) == 0 && len(lexical) == 0 {
		return []FusedChunk{}
	}

	scores := make(map[string]*FusedChunk, len(semantic)+len(lexical))

	getOrCreate := func(id string) *FusedChunk {
		if r, ok := scores[id]; ok {
			return r
		}
		r := &FusedChunk{ChunkID: id}
		scores[id] = r
		return r
	}

	for rank, r := range semantic {
		f := getOrCreate(r.ID)
		f.SemanticScore = r.Score
		f.SemanticRank = rank + 1
		f.Score += weights.Semantic / float64(rank+1)
	}

	for rank, r := range lexical {
		f := getOrCreate(r.ID)
		f.LexicalScore = r.Score
		f.LexicalRank = rank + 1
		f.Score += weights.Lexical / float64(rank+1)
	}

	results := make([]FusedChunk, 0, len(scores))
	for _, r := range scores {
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		return compareFused(results[i], results[j])
	})

	return results
}

// compareFused reports whether a ranks before b.
func compareFused(a, b FusedChunk) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}

	// Lower semantic rank wins; chunks absent from the semantic list
	// sort after any that appear in it.
	ar, br := missingLast(a.SemanticRank), missingLast(b.SemanticRank)
	if ar != br {
		return ar < br
	}

	// Ordinal IDs make this corpus order.
	return a.ChunkID < b.ChunkID
}

func missingLast(rank int) int {
	if rank == 0 {
		return int(^uint(0) >> 1)
	}
	return rank
}
