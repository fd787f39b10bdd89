// Package search exposes hybrid retrieval as a single facade consumed by
// the tool surface and the CLI.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/geoflow-cds/geoflow/internal/corpus"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
	"github.com/geoflow-cds/geoflow/internal/retriever"
	"github.com/geoflow-cds/geoflow/internal/telemetry"
)

// SearchTypeHybrid is the only search type the engine serves. Every
// record carries it so downstream agents can audit result provenance.
const SearchTypeHybrid = "hybrid"

// Record is one search result as consumed by the agent runtime.
type Record struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	JSONFile   string `json:"json_file"`
	SearchType string `json:"search_type"`
	Rank       int    `json:"rank"`
}

// Config bounds facade behavior.
type Config struct {
	// DefaultResults is used when a caller passes nResults <= 0 at the
	// tool layer; the facade itself rejects non-positive values.
	DefaultResults int
	// MaxResults caps nResults per query.
	MaxResults int
	// Timeout bounds each query end to end.
	Timeout time.Duration
}

// DefaultConfig returns the standard facade limits.
func DefaultConfig() Config {
	return Config{
		DefaultResults: 10,
		MaxResults:     100,
		Timeout:        30 * time.Second,
	}
}

// Service is the hybrid search facade. It validates input, bounds each
// query with a timeout, and projects fused chunks into Records.
type Service struct {
	ensemble *retriever.Ensemble
	corp     *corpus.Corpus
	metrics  *telemetry.QueryMetrics
	cfg      Config
}

// NewService builds the facade. metrics may be nil to disable telemetry.
func NewService(ensemble *retriever.Ensemble, corp *corpus.Corpus, metrics *telemetry.QueryMetrics, cfg Config) *Service {
	if cfg.DefaultResults <= 0 {
		cfg.DefaultResults = 10
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Service{ensemble: ensemble, corp: corp, metrics: metrics, cfg: cfg}
}

// DefaultResults returns the result count used when a caller omits it.
func (s *Service) DefaultResults() int {
	return s.cfg.DefaultResults
}

// Search runs one hybrid query and returns at most nResults records
// ranked 1..N with no gaps.
//
// The query must be non-empty after trimming and nResults must be
// positive; violations fail with validation errors before any retrieval
// work happens. An empty result list is a valid outcome, not an error.
func (s *Service) Search(ctx context.Context, query string, nResults int) ([]Record, error) {
	start := time.Now()

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, geoerrors.QueryEmpty()
	}
	if nResults <= 0 {
		return nil, geoerrors.InvalidArgument("n_results must be positive")
	}
	if nResults > s.cfg.MaxResults {
		nResults = s.cfg.MaxResults
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	fused, err := s.ensemble.Retrieve(queryCtx, trimmed, nResults)
	if err != nil {
		// The embedding call is the only slow dependency inside the
		// window, so a deadline here is a provider timeout.
		if queryCtx.Err() == context.DeadlineExceeded {
			err = geoerrors.Wrap(err, geoerrors.ErrCodeEmbedTimeout,
				"query timed out")
		}
		s.record(trimmed, 0, start, true)
		return nil, err
	}

	records := make([]Record, len(fused))
	for i, f := range fused {
		ch, ok := s.corp.Get(f.ChunkID)
		if !ok {
			// Index and corpus are built from the same snapshot, so a
			// miss means internal inconsistency.
			s.record(trimmed, 0, start, true)
			return nil, geoerrors.Newf(geoerrors.ErrCodeInternal,
				"chunk %s not found in corpus", f.ChunkID)
		}
		records[i] = Record{
			Content:    ch.Content,
			Source:     ch.Meta(corpus.MetaSourceFile),
			JSONFile:   ch.Meta(corpus.MetaJSONFile),
			SearchType: SearchTypeHybrid,
			Rank:       i + 1,
		}
	}

	s.record(trimmed, len(records), start, false)
	slog.Debug("search complete",
		"results", len(records),
		"elapsed", time.Since(start).String())

	return records, nil
}

func (s *Service) record(query string, results int, start time.Time, failed bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		ResultCount: results,
		Latency:     time.Since(start),
		Failed:      failed,
	})
}

// Metrics returns the telemetry collector, or nil when disabled.
func (s *Service) Metrics() *telemetry.QueryMetrics {
	return s.metrics
}
