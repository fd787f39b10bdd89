package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/geoflow-cds/geoflow/internal/agent"
	"github.com/geoflow-cds/geoflow/internal/search"
	"github.com/geoflow-cds/geoflow/pkg/version"
)

// serverName identifies this server to MCP clients.
const serverName = "GeoFlow CDS"

// Server is the MCP server for GeoFlow CDS. It bridges the agent runtime
// with the hybrid retrieval engine and the agent configuration registry.
type Server struct {
	mcp      *mcp.Server
	svc      *search.Service
	registry *agent.Registry
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// VectorSearchInput defines the input schema for the vector_search tool.
type VectorSearchInput struct {
	Query    string `json:"query" jsonschema:"the natural-language query to run against the regulatory corpus"`
	NResults int    `json:"n_results,omitempty" jsonschema:"maximum number of results, default 10"`
}

// VectorSearchOutput defines the output schema for the vector_search tool.
type VectorSearchOutput struct {
	Results []search.Record `json:"results" jsonschema:"ranked search results, best first"`
}

// ReadConfigInput is the (empty) input schema for the read_config tool.
type ReadConfigInput struct{}

// ReadConfigOutput mirrors the agents file as served to clients.
type ReadConfigOutput struct {
	MainAgents map[string]agent.MainAgent `json:"main_agents" jsonschema:"top-level orchestrating agents"`
	Subagents  map[string]agent.Subagent  `json:"subagents" jsonschema:"specialized delegate agents"`
}

// ImprovePromptInput defines the input schema for the improve_prompt tool.
type ImprovePromptInput struct {
	AgentName   string `json:"agent_name" jsonschema:"name of the agent whose prompt to replace"`
	IsMainAgent bool   `json:"is_main_agent,omitempty" jsonschema:"true to target a main agent, false for a subagent"`
	NewPrompt   string `json:"new_prompt" jsonschema:"the replacement prompt text"`
}

// ImprovePromptOutput defines the output schema for the improve_prompt tool.
type ImprovePromptOutput struct {
	AgentName  string `json:"agent_name" jsonschema:"the agent that was updated"`
	BackupPath string `json:"backup_path" jsonschema:"path of the timestamped backup written before the update"`
	Message    string `json:"message" jsonschema:"human-readable confirmation"`
}

// NewServer creates a new MCP server over the search facade and the agent
// registry.
func NewServer(svc *search.Service, registry *agent.Registry) (*Server, error) {
	if svc == nil {
		return nil, errors.New("search service is required")
	}
	if registry == nil {
		return nil, errors.New("agent registry is required")
	}

	s := &Server{
		svc:      svc,
		registry: registry,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "vector_search",
			Description: "Hybrid retrieval over the regulatory corpus. Fuses semantic and keyword search into one ranked list. Use this to ground compliance answers in corpus passages.",
		},
		{
			Name:        "read_config",
			Description: "Read the current agent hierarchy: main agents, subagents, their prompts and models.",
		},
		{
			Name:        "improve_prompt",
			Description: "Replace an agent's prompt in the agents configuration. Writes a timestamped backup first and hot-reloads the registry.",
		},
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	for _, info := range s.ListTools() {
		s.logger.Debug("Registering MCP tool", slog.String("name", info.Name))
	}

	tools := s.ListTools()
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[0].Name,
		Description: tools[0].Description,
	}, s.vectorSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.readConfigHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[2].Name,
		Description: tools[2].Description,
	}, s.improvePromptHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
}

// vectorSearchHandler is the MCP SDK handler for the vector_search tool.
func (s *Server) vectorSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input VectorSearchInput) (
	*mcp.CallToolResult,
	VectorSearchOutput,
	error,
) {
	start := time.Now()
	requestID := generateRequestID()

	if input.Query == "" {
		return nil, VectorSearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	n := input.NResults
	if n <= 0 {
		n = s.svc.DefaultResults()
	}

	s.logger.Info("vector_search started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("n_results", n))

	records, err := s.svc.Search(ctx, input.Query, n)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("vector_search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, VectorSearchOutput{}, MapError(err)
	}

	s.logger.Info("vector_search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(records)))

	if records == nil {
		records = []search.Record{}
	}
	return nil, VectorSearchOutput{Results: records}, nil
}

// readConfigHandler is the MCP SDK handler for the read_config tool.
func (s *Server) readConfigHandler(_ context.Context, _ *mcp.CallToolRequest, _ ReadConfigInput) (
	*mcp.CallToolResult,
	ReadConfigOutput,
	error,
) {
	requestID := generateRequestID()

	snap := s.registry.Snapshot()
	s.logger.Info("read_config completed",
		slog.String("request_id", requestID),
		slog.Int("main_agents", len(snap.MainAgents)),
		slog.Int("subagents", len(snap.Subagents)))

	return nil, ReadConfigOutput{
		MainAgents: snap.MainAgents,
		Subagents:  snap.Subagents,
	}, nil
}

// improvePromptHandler is the MCP SDK handler for the improve_prompt tool.
func (s *Server) improvePromptHandler(_ context.Context, _ *mcp.CallToolRequest, input ImprovePromptInput) (
	*mcp.CallToolResult,
	ImprovePromptOutput,
	error,
) {
	start := time.Now()
	requestID := generateRequestID()

	if input.AgentName == "" {
		return nil, ImprovePromptOutput{}, NewInvalidParamsError("agent_name parameter is required")
	}
	if input.NewPrompt == "" {
		return nil, ImprovePromptOutput{}, NewInvalidParamsError("new_prompt parameter is required")
	}

	s.logger.Info("improve_prompt started",
		slog.String("request_id", requestID),
		slog.String("agent", input.AgentName),
		slog.Bool("is_main_agent", input.IsMainAgent))

	backupPath, err := s.registry.UpdateInstructions(input.AgentName, input.IsMainAgent, input.NewPrompt)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("improve_prompt failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, ImprovePromptOutput{}, MapError(err)
	}

	s.logger.Info("improve_prompt completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.String("backup", backupPath))

	return nil, ImprovePromptOutput{
		AgentName:  input.AgentName,
		BackupPath: backupPath,
		Message:    fmt.Sprintf("Prompt for %q updated. Previous version backed up to %s.", input.AgentName, backupPath),
	}, nil
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
