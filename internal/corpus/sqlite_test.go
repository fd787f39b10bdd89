package corpus

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "corpus.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenMissingStoreFails(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "absent.db"), false)

	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeStoreUnavailable))
}

func TestGetCollectionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetCollection(context.Background(), "regulations")
	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeCollectionNotFound))
}

func TestAddAndGetAllPreservesIngestOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateCollection(ctx, "regulations")
	require.NoError(t, err)

	in := []Chunk{
		{Content: "Article 1", Metadata: map[string]string{MetaSourceFile: "gdpr.pdf"}},
		{Content: "Article 2", Metadata: map[string]string{MetaSourceFile: "gdpr.pdf", MetaJSONFile: "gdpr.json"}},
		{Content: "Section 10", Metadata: nil},
	}
	require.NoError(t, store.AddChunks(ctx, "regulations", in))

	coll, err := store.GetCollection(ctx, "regulations")
	require.NoError(t, err)

	n, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out, err := coll.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "Article 1", out[0].Content)
	assert.Equal(t, "Article 2", out[1].Content)
	assert.Equal(t, "Section 10", out[2].Content)
	assert.Equal(t, "gdpr.json", out[1].Metadata[MetaJSONFile])
}

func TestAddChunksAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateCollection(ctx, "regulations")
	require.NoError(t, err)

	require.NoError(t, store.AddChunks(ctx, "regulations", []Chunk{{Content: "first"}}))
	require.NoError(t, store.AddChunks(ctx, "regulations", []Chunk{{Content: "second"}}))

	coll, err := store.GetCollection(ctx, "regulations")
	require.NoError(t, err)
	out, err := coll.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Content)
	assert.Equal(t, "second", out[1].Content)
}

func TestListCollections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateCollection(ctx, "us_regulations")
	require.NoError(t, err)
	_, err = store.CreateCollection(ctx, "eu_regulations")
	require.NoError(t, err)

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"eu_regulations", "us_regulations"}, names)
}

func TestLoadBuildsOrdinalCorpus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateCollection(ctx, "regulations")
	require.NoError(t, err)
	require.NoError(t, store.AddChunks(ctx, "regulations", []Chunk{
		{Content: "Article 1"},
		{Content: ""},
		{Content: "Article 2"},
	}))

	c, err := Load(ctx, store, "regulations")
	require.NoError(t, err)

	// The empty chunk is dropped; ordinals stay dense.
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "00000000", c.Chunks()[0].ID)
	assert.Equal(t, "00000001", c.Chunks()[1].ID)
	assert.Equal(t, "Article 2", c.Chunks()[1].Content)
}

func TestLoadMissingCollection(t *testing.T) {
	store := newTestStore(t)

	_, err := Load(context.Background(), store, "nope")
	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeCollectionNotFound))
}
