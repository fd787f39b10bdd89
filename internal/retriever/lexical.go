package retriever

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/geoflow-cds/geoflow/internal/corpus"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

const (
	// regTokenizerName is the custom word tokenizer registered with bleve.
	regTokenizerName = "regulatory_tokenizer"

	// regStopFilterName is the custom stop word filter.
	regStopFilterName = "regulatory_stop"

	// regAnalyzerName is the analyzer combining both with lowercasing.
	regAnalyzerName = "regulatory_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(regTokenizerName, regTokenizerConstructor)
	_ = registry.RegisterTokenFilter(regStopFilterName, regStopFilterConstructor)
}

// regulatoryStopWords are high-frequency English words excluded from the
// lexical index. Legal connectives like "shall" and "pursuant" are kept;
// they carry signal in regulatory text.
var regulatoryStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {},
	"at": {}, "be": {}, "but": {}, "by": {}, "for": {},
	"if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"no": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// LexicalRetriever retrieves by BM25 keyword match over an in-memory
// bleve index built once from the corpus snapshot.
type LexicalRetriever struct {
	mu    sync.RWMutex
	index bleve.Index
}

// bleveDoc is the indexed document shape.
type bleveDoc struct {
	Content string `json:"content"`
}

// BuildLexicalRetriever indexes every corpus chunk under its ordinal ID.
// Ordinal IDs make bleve's internal ID tie-break equal to corpus order.
func BuildLexicalRetriever(corp *corpus.Corpus) (*LexicalRetriever, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrCodeInternal,
			"failed to create index mapping")
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrCodeInternal,
			"failed to create lexical index")
	}

	batch := idx.NewBatch()
	for _, ch := range corp.Chunks() {
		if err := batch.Index(ch.ID, bleveDoc{Content: ch.Content}); err != nil {
			_ = idx.Close()
			return nil, geoerrors.Wrap(err, geoerrors.ErrCodeInternal,
				"failed to index chunk "+ch.ID)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, geoerrors.Wrap(err, geoerrors.ErrCodeInternal,
			"failed to execute index batch")
	}

	return &LexicalRetriever{index: idx}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(regAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": regTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			regStopFilterName,
		},
	})
	if err != nil {
		return nil, err
	}

	indexMapping.DefaultAnalyzer = regAnalyzerName
	return indexMapping, nil
}

// Retrieve implements Retriever. A query with no matches (or an empty
// index) returns an empty result, never an error.
func (r *LexicalRetriever) Retrieve(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if k <= 0 {
		return nil, geoerrors.InvalidArgument("k must be positive")
	}
	if strings.TrimSpace(query) == "" {
		return []ScoredChunk{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = k

	result, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrCodeSearchFailed,
			"lexical search failed")
	}

	results := make([]ScoredChunk, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, ScoredChunk{ID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Name implements Retriever.
func (r *LexicalRetriever) Name() string {
	return "lexical"
}

// Close releases the index.
func (r *LexicalRetriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.Close()
}

var wordTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

func regTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &regTokenizer{}, nil
}

// regTokenizer splits text into alphanumeric word tokens, treating all
// whitespace and punctuation as boundaries.
type regTokenizer struct{}

func (t *regTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	locs := wordTokenRegex.FindAllStringIndex(text, -1)

	result := make(analysis.TokenStream, 0, len(locs))
	for i, loc := range locs {
		result = append(result, &analysis.Token{
			Term:     []byte(text[loc[0]:loc[1]]),
			Start:    loc[0],
			End:      loc[1],
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return result
}

func regStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &regStopFilter{stopWords: regulatoryStopWords}, nil
}

type regStopFilter struct {
	stopWords map[string]struct{}
}

func (f *regStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[strings.ToLower(string(token.Term))]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
