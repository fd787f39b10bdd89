package retriever

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

// EnsembleConfig configures the fused retriever.
type EnsembleConfig struct {
	// Weights are the fusion interpolation weights.
	Weights Weights
	// DegradeOnSemanticError serves lexical-only results when the
	// semantic leg fails at query time instead of failing the query.
	DegradeOnSemanticError bool
}

// Ensemble runs both retrieval legs for each query and fuses their
// ranked lists. It is stateless per call: k is a parameter, never
// shared mutable configuration.
type Ensemble struct {
	semantic Retriever
	lexical  Retriever
	cfg      EnsembleConfig
}

// NewEnsemble builds the fused retriever over the two legs.
func NewEnsemble(semantic, lexical Retriever, cfg EnsembleConfig) *Ensemble {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	return &Ensemble{semantic: semantic, lexical: lexical, cfg: cfg}
}

// Retrieve runs both legs with the same k in parallel, fuses by weighted
// reciprocal rank, and returns at most k deduplicated results.
//
// Both lists empty yields an empty result, not an error. A lexical leg
// failure always fails the query; a semantic leg failure fails it unless
// degrade mode is on, in which case lexical-only results are served.
func (e *Ensemble) Retrieve(ctx context.Context, query string, k int) ([]FusedChunk, error) {
	if k <= 0 {
		return nil, geoerrors.InvalidArgument("n_results must be positive")
	}

	var semResults, lexResults []ScoredChunk

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results, err := e.semantic.Retrieve(gctx, query, k)
		if err != nil {
			if e.cfg.DegradeOnSemanticError {
				slog.Warn("semantic leg failed, serving lexical-only results",
					"error", err)
				semResults = nil
				return nil
			}
			return err
		}
		semResults = results
		return nil
	})

	g.Go(func() error {
		results, err := e.lexical.Retrieve(gctx, query, k)
		if err != nil {
			return err
		}
		lexResults = results
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := Fuse(semResults, lexResults, e.cfg.Weights)
	if len(fused) > k {
		fused = fused[:k]
	}

	slog.Debug("hybrid retrieval complete",
		"query_len", len(query),
		"k", k,
		"semantic_hits", len(semResults),
		"lexical_hits", len(lexResults),
		"fused", len(fused))

	return fused, nil
}
