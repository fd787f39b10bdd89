package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/geoflow-cds/geoflow/internal/agent"
	"github.com/geoflow-cds/geoflow/internal/logging"
	"github.com/geoflow-cds/geoflow/internal/mcp"
	"github.com/geoflow-cds/geoflow/internal/telemetry"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio)",
		Long: `Start the GeoFlow MCP server over stdio.

Loads the regulatory corpus, builds both retrieval indexes, and exposes
the vector_search, read_config, and improve_prompt tools. The agents
configuration is watched and hot-reloaded while serving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// The stdio transport owns stdout, so logs go to file (and stderr
	// when configured); stdout is never written.
	logPath := cfg.Logging.FilePath
	if logPath == "" {
		logPath = logging.DefaultLogPath()
	}
	cleanup, err := logging.SetupDefault(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      logPath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: cfg.Logging.WriteToStderr,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg, true)
	if err != nil {
		slog.Error("startup failed", "error", err.Error())
		return err
	}
	defer eng.Close()

	watcher, err := agent.NewWatcher(eng.Registry, cfg.WatchDebounce())
	if err != nil {
		return err
	}
	go func() {
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			slog.Warn("agents watcher stopped", "error", err.Error())
		}
	}()

	srv, err := mcp.NewServer(eng.Service, eng.Registry)
	if err != nil {
		return err
	}

	serveErr := srv.Serve(ctx)

	// Persist the session's query telemetry for the stats command.
	if err := writeStatsSnapshot(eng.Metrics.Snapshot()); err != nil {
		slog.Warn("failed to write stats snapshot", "error", err.Error())
	}

	return serveErr
}

// statsFilePath is where serve leaves its telemetry snapshot on shutdown.
func statsFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".geoflow", "stats.json")
	}
	return filepath.Join(home, ".geoflow", "stats.json")
}

func writeStatsSnapshot(snap *telemetry.Snapshot) error {
	path := statsFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
