package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoflow-cds/geoflow/internal/agent"
	"github.com/geoflow-cds/geoflow/internal/corpus"
	"github.com/geoflow-cds/geoflow/internal/embed"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
	"github.com/geoflow-cds/geoflow/internal/retriever"
	"github.com/geoflow-cds/geoflow/internal/search"
)

const serverTestAgentsYAML = `main_agents:
  compliance_lead:
    name: compliance_lead
    instructions: Route compliance questions.
    subagents:
      - regulation_researcher

subagents:
  regulation_researcher:
    name: regulation_researcher
    description: Finds relevant regulatory passages.
    prompt: Search the corpus and cite sources.
`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	corp := corpus.NewCorpus([]corpus.Chunk{
		{Content: "Data residency requirements apply to cloud providers.",
			Metadata: map[string]string{corpus.MetaSourceFile: "gdpr.pdf", corpus.MetaJSONFile: "gdpr.json"}},
		{Content: "Encryption keys must be rotated every ninety days."},
		{Content: "Cross-border data transfers require adequacy decisions."},
	})

	embedder := embed.NewStaticEmbedder()
	sem, err := retriever.BuildSemanticRetriever(context.Background(), corp, embedder, 8)
	require.NoError(t, err)
	lex, err := retriever.BuildLexicalRetriever(corp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })

	ensemble := retriever.NewEnsemble(sem, lex, retriever.EnsembleConfig{})
	svc := search.NewService(ensemble, corp, nil, search.DefaultConfig())

	agentsPath := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(agentsPath, []byte(serverTestAgentsYAML), 0o644))
	registry, err := agent.LoadRegistry(agentsPath)
	require.NoError(t, err)

	srv, err := NewServer(svc, registry)
	require.NoError(t, err)
	return srv
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service")
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t)

	names := make([]string, 0, 3)
	for _, ti := range srv.ListTools() {
		names = append(names, ti.Name)
	}
	assert.Equal(t, []string{"vector_search", "read_config", "improve_prompt"}, names)
}

func TestVectorSearchTool(t *testing.T) {
	srv := newTestServer(t)

	_, out, err := srv.vectorSearchHandler(context.Background(), nil, VectorSearchInput{
		Query: "Encryption keys must be rotated every ninety days.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)

	first := out.Results[0]
	assert.Equal(t, "Encryption keys must be rotated every ninety days.", first.Content)
	assert.Equal(t, search.SearchTypeHybrid, first.SearchType)
	assert.Equal(t, 1, first.Rank)
}

func TestVectorSearchToolDefaultsNResults(t *testing.T) {
	srv := newTestServer(t)

	// Omitted n_results falls back to the service default rather than
	// failing validation.
	_, out, err := srv.vectorSearchHandler(context.Background(), nil, VectorSearchInput{
		Query: "data transfers",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Results)
}

func TestVectorSearchToolRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(t)

	_, _, err := srv.vectorSearchHandler(context.Background(), nil, VectorSearchInput{})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestVectorSearchToolMapsWhitespaceQuery(t *testing.T) {
	srv := newTestServer(t)

	// A whitespace-only query passes the handler's presence check but is
	// rejected downstream; the validation error maps to invalid params.
	_, _, err := srv.vectorSearchHandler(context.Background(), nil, VectorSearchInput{Query: "   "})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestReadConfigTool(t *testing.T) {
	srv := newTestServer(t)

	_, out, err := srv.readConfigHandler(context.Background(), nil, ReadConfigInput{})
	require.NoError(t, err)

	require.Contains(t, out.MainAgents, "compliance_lead")
	require.Contains(t, out.Subagents, "regulation_researcher")
	assert.Equal(t, "Search the corpus and cite sources.",
		out.Subagents["regulation_researcher"].Prompt)
}

func TestImprovePromptTool(t *testing.T) {
	srv := newTestServer(t)

	_, out, err := srv.improvePromptHandler(context.Background(), nil, ImprovePromptInput{
		AgentName: "regulation_researcher",
		NewPrompt: "Search the corpus, cite sources, flag conflicts.",
	})
	require.NoError(t, err)
	assert.Equal(t, "regulation_researcher", out.AgentName)
	assert.FileExists(t, out.BackupPath)

	// The registry reflects the update immediately.
	_, cfg, err := srv.readConfigHandler(context.Background(), nil, ReadConfigInput{})
	require.NoError(t, err)
	assert.Equal(t, "Search the corpus, cite sources, flag conflicts.",
		cfg.Subagents["regulation_researcher"].Prompt)
}

func TestImprovePromptToolUnknownAgent(t *testing.T) {
	srv := newTestServer(t)

	_, _, err := srv.improvePromptHandler(context.Background(), nil, ImprovePromptInput{
		AgentName: "ghost",
		NewPrompt: "anything",
	})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeAgentNotFound, mcpErr.Code)
}

func TestImprovePromptToolValidatesInput(t *testing.T) {
	srv := newTestServer(t)

	_, _, err := srv.improvePromptHandler(context.Background(), nil, ImprovePromptInput{
		NewPrompt: "anything",
	})
	require.Error(t, err)

	_, _, err = srv.improvePromptHandler(context.Background(), nil, ImprovePromptInput{
		AgentName: "regulation_researcher",
	})
	require.Error(t, err)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"query empty", geoerrors.QueryEmpty(), ErrCodeInvalidParams},
		{"invalid argument", geoerrors.InvalidArgument("bad"), ErrCodeInvalidParams},
		{"store unavailable", geoerrors.StoreUnavailable("/tmp/db", nil), ErrCodeStoreUnavailable},
		{"embed failed", geoerrors.EmbeddingFailed(nil), ErrCodeEmbeddingFailed},
		{"embed timeout", geoerrors.New(geoerrors.ErrCodeEmbedTimeout, "timed out"), ErrCodeTimeout},
		{"agent not found", geoerrors.AgentNotFound("subagent", "x", nil), ErrCodeAgentNotFound},
		{"context deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"plain error", assert.AnError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestMapErrorIncludesSuggestion(t *testing.T) {
	err := geoerrors.StoreUnavailable("/tmp/db", nil)
	got := MapError(err)
	require.NotNil(t, got)
	assert.Contains(t, got.Message, "verify the store path")
}
