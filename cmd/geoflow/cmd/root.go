// Package cmd provides the CLI commands for GeoFlow CDS.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoflow-cds/geoflow/internal/agent"
	"github.com/geoflow-cds/geoflow/internal/config"
	"github.com/geoflow-cds/geoflow/internal/corpus"
	"github.com/geoflow-cds/geoflow/internal/embed"
	"github.com/geoflow-cds/geoflow/internal/retriever"
	"github.com/geoflow-cds/geoflow/internal/search"
	"github.com/geoflow-cds/geoflow/internal/telemetry"
	"github.com/geoflow-cds/geoflow/pkg/version"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	offline    bool
}

// NewRootCmd creates the root command for the geoflow CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "geoflow",
		Short: "Hybrid retrieval MCP server for regulatory compliance agents",
		Long: `GeoFlow CDS serves hybrid search (semantic + keyword) over an
ingested regulatory corpus to AI agent runtimes over MCP stdio.

Running 'geoflow' with no arguments starts the server.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.SetVersionTemplate("geoflow version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to geoflow.yaml (defaults apply when omitted)")
	cmd.PersistentFlags().BoolVar(&opts.offline, "offline", false,
		"Use the static embedder (no network calls)")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newAgentsCmd(opts))
	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.offline {
		cfg.Embeddings.Provider = "static"
	}
	return cfg, nil
}

// engine bundles everything a query path needs, with its teardown.
type engine struct {
	Service  *search.Service
	Registry *agent.Registry
	Metrics  *telemetry.QueryMetrics

	closers []func()
}

// Close releases engine resources in reverse construction order.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// buildEngine opens the corpus store and assembles the retrieval stack:
// embedder, both retrievers, the fusion ensemble, and the search facade.
// withAgents also loads the agent registry (required for serving tools).
func buildEngine(ctx context.Context, cfg *config.Config, withAgents bool) (*engine, error) {
	e := &engine{}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	store, err := corpus.OpenSQLite(cfg.Store.Path, false)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() { _ = store.Close() })

	corp, err := corpus.Load(ctx, store, cfg.Store.Collection)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.New(ctx, cfg.Embeddings)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() { _ = embedder.Close() })

	sem, err := retriever.BuildSemanticRetriever(ctx, corp, embedder, cfg.Embeddings.BatchSize)
	if err != nil {
		return nil, err
	}

	lex, err := retriever.BuildLexicalRetriever(corp)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() { _ = lex.Close() })

	ensemble := retriever.NewEnsemble(sem, lex, retriever.EnsembleConfig{
		Weights: retriever.Weights{
			Semantic: cfg.Search.SemanticWeight,
			Lexical:  cfg.Search.LexicalWeight,
		},
		DegradeOnSemanticError: cfg.Search.DegradeOnEmbedError,
	})

	e.Metrics = telemetry.NewQueryMetrics(100, 100)
	e.Service = search.NewService(ensemble, corp, e.Metrics, search.Config{
		DefaultResults: cfg.Search.DefaultResults,
		MaxResults:     cfg.Search.MaxResults,
		Timeout:        cfg.SearchTimeout(),
	})

	if withAgents {
		registry, err := agent.LoadRegistry(cfg.Agents.Path)
		if err != nil {
			return nil, err
		}
		e.Registry = registry
	}

	ok = true
	return e, nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
