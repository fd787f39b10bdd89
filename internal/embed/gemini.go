package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/geoflow-cds/geoflow/internal/config"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

const (
	// DefaultGeminiHost is the Google Generative Language API endpoint.
	DefaultGeminiHost = "https://generativelanguage.googleapis.com"

	// DefaultGeminiModel is the embedding model used for the corpus.
	DefaultGeminiModel = "models/embedding-001"

	// geminiDimensions is the embedding-001 output size.
	geminiDimensions = 768
)

// GeminiEmbedder calls the Gemini embedContent API over HTTP.
type GeminiEmbedder struct {
	host    string
	model   string
	apiKey  string
	timeout time.Duration
	retry   RetryConfig
	client  *http.Client

	mu     sync.RWMutex
	closed bool
}

// NewGeminiEmbedder creates a Gemini embedder from config. The API key is
// required; requests carry a per-call timeout rather than a client-wide one
// so callers keep context control.
func NewGeminiEmbedder(cfg config.EmbeddingsConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, geoerrors.New(geoerrors.ErrCodeConfigInvalid,
			"gemini embedder requires an API key").
			WithSuggestion("set GEOFLOW_API_KEY or GOOGLE_API_KEY")
	}

	host := cfg.Host
	if host == "" {
		host = DefaultGeminiHost
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	timeout := 15 * time.Second
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &GeminiEmbedder{
		host:    strings.TrimRight(host, "/"),
		model:   model,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		retry:   DefaultRetryConfig(),
		client:  &http.Client{Transport: transport},
	}, nil
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type embedContentRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed implements Embedder.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	reqBody := embedContentRequest{
		Model:   e.model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}

	var resp embedContentResponse
	url := fmt.Sprintf("%s/v1beta/%s:embedContent", e.host, e.model)
	if err := e.post(ctx, url, reqBody, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding.Values) == 0 {
		return nil, geoerrors.New(geoerrors.ErrCodeEmbedFailed,
			"gemini returned an empty embedding")
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch implements Embedder using the batchEmbedContents endpoint.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := batchEmbedRequest{Requests: make([]embedContentRequest, len(texts))}
	for i, t := range texts {
		reqBody.Requests[i] = embedContentRequest{
			Model:   e.model,
			Content: geminiContent{Parts: []geminiPart{{Text: t}}},
		}
	}

	var resp batchEmbedResponse
	url := fmt.Sprintf("%s/v1beta/%s:batchEmbedContents", e.host, e.model)
	if err := e.post(ctx, url, reqBody, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, geoerrors.Newf(geoerrors.ErrCodeEmbedFailed,
			"gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// post sends a JSON request with retry on transient failures.
func (e *GeminiEmbedder) post(ctx context.Context, url string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrCodeInternal, "failed to encode request")
	}

	return withRetry(ctx, e.retry, isTransient, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrCodeInternal, "failed to build request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return geoerrors.Wrap(err, geoerrors.ErrCodeEmbedTimeout, "embedding request timed out")
			}
			return geoerrors.EmbeddingUnavailable("gemini", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			slog.Debug("gemini request failed",
				"status", resp.StatusCode, "body", string(body))
			code := geoerrors.ErrCodeEmbedFailed
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				code = geoerrors.ErrCodeEmbedUnavailable
			}
			return geoerrors.Newf(code, "gemini returned status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrCodeEmbedFailed, "failed to decode response")
		}
		return nil
	})
}

// isTransient reports whether a failure is worth retrying.
func isTransient(err error) bool {
	if geoerrors.HasCode(err, geoerrors.ErrCodeEmbedTimeout) ||
		geoerrors.HasCode(err, geoerrors.ErrCodeEmbedUnavailable) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Dimensions implements Embedder.
func (e *GeminiEmbedder) Dimensions() int {
	return geminiDimensions
}

// ModelName implements Embedder.
func (e *GeminiEmbedder) ModelName() string {
	return e.model
}

// Available probes the provider with a minimal embedding request.
func (e *GeminiEmbedder) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := e.Embed(probeCtx, "ping")
	return err == nil
}

// Close implements Embedder.
func (e *GeminiEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}

func (e *GeminiEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return geoerrors.New(geoerrors.ErrCodeEmbedFailed, "embedder is closed")
	}
	return nil
}
