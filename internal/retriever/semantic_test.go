package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoflow-cds/geoflow/internal/corpus"
	"github.com/geoflow-cds/geoflow/internal/embed"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

func newSemanticFixture(t *testing.T) *SemanticRetriever {
	t.Helper()
	corp := corpus.NewCorpus([]corpus.Chunk{
		{Content: "Data residency requirements apply to all cloud storage providers."},
		{Content: "Encryption keys must be rotated every ninety days."},
		{Content: "Cross-border data transfers require adequacy decisions."},
	})

	r, err := BuildSemanticRetriever(context.Background(), corp, embed.NewStaticEmbedder(), 2)
	require.NoError(t, err)
	return r
}

func TestSemanticRetrieveExactTextRanksFirst(t *testing.T) {
	r := newSemanticFixture(t)

	// The static embedder maps identical text to identical vectors, so
	// an exact-text query has cosine similarity 1 with its chunk.
	results, err := r.Retrieve(context.Background(),
		"Encryption keys must be rotated every ninety days.", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "00000001", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
}

func TestSemanticRetrieveRespectsK(t *testing.T) {
	r := newSemanticFixture(t)

	results, err := r.Retrieve(context.Background(), "data transfers", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestSemanticRetrieveDeterministic(t *testing.T) {
	r := newSemanticFixture(t)
	ctx := context.Background()

	first, err := r.Retrieve(ctx, "cloud data requirements", 3)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := r.Retrieve(ctx, "cloud data requirements", 3)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestSemanticRetrieveEmptyCorpus(t *testing.T) {
	r, err := BuildSemanticRetriever(context.Background(),
		corpus.NewCorpus(nil), embed.NewStaticEmbedder(), 8)
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticBuildFailsOnEmbedError(t *testing.T) {
	closed := embed.NewStaticEmbedder()
	require.NoError(t, closed.Close())

	corp := corpus.NewCorpus([]corpus.Chunk{{Content: "some text"}})
	_, err := BuildSemanticRetriever(context.Background(), corp, closed, 8)

	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeEmbedFailed))
}

func TestSemanticRetrieveRejectsNonPositiveK(t *testing.T) {
	r := newSemanticFixture(t)

	_, err := r.Retrieve(context.Background(), "query", 0)
	assert.Error(t, err)
}
