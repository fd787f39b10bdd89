package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoflow-cds/geoflow/internal/config"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

func newGeminiForTest(t *testing.T, handler http.Handler) *GeminiEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	e, err := NewGeminiEmbedder(config.EmbeddingsConfig{
		Provider: "gemini",
		Model:    DefaultGeminiModel,
		Host:     srv.URL,
		APIKey:   "test-key",
		Timeout:  "2s",
	})
	require.NoError(t, err)
	e.retry = RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return e
}

func TestGeminiEmbed(t *testing.T) {
	e := newGeminiForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, ":embedContent")

		var req embedContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "data residency", req.Content.Parts[0].Text)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
		})
	}))

	vec, err := e.Embed(context.Background(), "data residency")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestGeminiEmbedBatch(t *testing.T) {
	e := newGeminiForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":batchEmbedContents")

		var req batchEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 2)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": []map[string]any{
				{"values": []float32{1, 0}},
				{"values": []float32{0, 1}},
			},
		})
	}))

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func TestGeminiRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	e := newGeminiForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.5}},
		})
	}))

	vec, err := e.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vec)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGeminiClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	e := newGeminiForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := e.Embed(context.Background(), "bad request")
	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeEmbedFailed))
	assert.Equal(t, int64(1), calls.Load())
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiEmbedder(config.EmbeddingsConfig{Provider: "gemini"})

	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeConfigInvalid))
}
