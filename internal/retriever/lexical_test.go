package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoflow-cds/geoflow/internal/corpus"
)

func newLexicalFixture(t *testing.T) *LexicalRetriever {
	t.Helper()
	corp := corpus.NewCorpus([]corpus.Chunk{
		{Content: "Data residency requirements apply to all cloud storage providers."},
		{Content: "Encryption keys must be rotated every ninety days."},
		{Content: "Cross-border data transfers require adequacy decisions."},
		{Content: "Cloud providers shall maintain audit logs for data access."},
	})

	r, err := BuildLexicalRetriever(corp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestLexicalRetrieveMatchesKeywords(t *testing.T) {
	r := newLexicalFixture(t)

	results, err := r.Retrieve(context.Background(), "encryption keys", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "00000001", results[0].ID)
}

func TestLexicalRetrieveNoMatches(t *testing.T) {
	r := newLexicalFixture(t)

	results, err := r.Retrieve(context.Background(), "quarterly tax filings", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalRetrieveStopWordOnlyQuery(t *testing.T) {
	r := newLexicalFixture(t)

	// The analyzer drops every term, leaving nothing to match.
	results, err := r.Retrieve(context.Background(), "the and of", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalRetrieveRespectsK(t *testing.T) {
	r := newLexicalFixture(t)

	results, err := r.Retrieve(context.Background(), "data cloud providers", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestLexicalRetrieveRejectsNonPositiveK(t *testing.T) {
	r := newLexicalFixture(t)

	_, err := r.Retrieve(context.Background(), "data", 0)
	assert.Error(t, err)
}

func TestLexicalRetrieveDeterministic(t *testing.T) {
	r := newLexicalFixture(t)
	ctx := context.Background()

	first, err := r.Retrieve(ctx, "data providers", 10)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := r.Retrieve(ctx, "data providers", 10)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestLexicalRetrieveCaseInsensitive(t *testing.T) {
	r := newLexicalFixture(t)
	ctx := context.Background()

	lower, err := r.Retrieve(ctx, "encryption", 10)
	require.NoError(t, err)
	upper, err := r.Retrieve(ctx, "ENCRYPTION", 10)
	require.NoError(t, err)

	require.NotEmpty(t, lower)
	assert.Equal(t, lower, upper)
}

func TestLexicalEmptyCorpus(t *testing.T) {
	r, err := BuildLexicalRetriever(corpus.NewCorpus(nil))
	require.NoError(t, err)
	defer r.Close()

	results, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
