package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geoflow-cds/geoflow/internal/logging"
	"github.com/geoflow-cds/geoflow/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	nResults int
	format   string // "json", "text"
}

func newSearchCmd(rootOpts *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot hybrid query against the corpus",
		Long: `Run a single hybrid query and print the fused results.

Combines semantic (embedding) and keyword retrieval with weighted
reciprocal-rank fusion.

Examples:
  geoflow search "data residency requirements"
  geoflow search "encryption at rest" -n 5 --format text
  geoflow search --offline "cross-border transfers"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, rootOpts, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.nResults, "n-results", "n", 0,
		"Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json",
		"Output format: json, text")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, rootOpts *rootOptions, query string, opts searchOptions) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}

	// One-shot runs log to file only; stdout carries results.
	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if cleanup, err := logging.SetupDefault(logCfg); err == nil {
		defer cleanup()
	}

	if !fileExists(cfg.Store.Path) {
		return fmt.Errorf("no corpus store at %s; run 'geoflow ingest' first", cfg.Store.Path)
	}

	eng, err := buildEngine(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer eng.Close()

	n := opts.nResults
	if n <= 0 {
		n = eng.Service.DefaultResults()
	}

	slog.Info("search started", "query", query, "n_results", n)
	records, err := eng.Service.Search(ctx, query, n)
	if err != nil {
		return err
	}

	switch opts.format {
	case "text":
		return formatText(cmd, query, records)
	default:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
}

// formatText outputs results in human-readable form.
func formatText(cmd *cobra.Command, query string, records []search.Record) error {
	out := cmd.OutOrStdout()

	if len(records) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d results for %q:\n\n", len(records), query)
	for _, r := range records {
		fmt.Fprintf(out, "%d. %s\n", r.Rank, r.Source)
		for _, line := range snippet(r.Content, 3) {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// snippet returns the first n lines of content.
func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
