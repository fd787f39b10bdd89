package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoflow-cds/geoflow/internal/corpus"
	"github.com/geoflow-cds/geoflow/internal/telemetry"
)

// StatsOutput is the JSON output format for the stats command.
type StatsOutput struct {
	StorePath   string              `json:"store_path"`
	Collections []CollectionStats   `json:"collections"`
	Queries     *telemetry.Snapshot `json:"queries,omitempty"`
}

// CollectionStats summarizes one corpus collection.
type CollectionStats struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
}

func newStatsCmd(rootOpts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and query statistics",
		Long: `Display corpus collection sizes and, when available, query telemetry
from the most recent server session (written on shutdown).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			return runStats(cmd.Context(), cmd, cfg.Store.Path, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, storePath string, jsonOutput bool) error {
	out := StatsOutput{StorePath: storePath}

	store, err := corpus.OpenSQLite(storePath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	names, err := store.ListCollections(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		coll, err := store.GetCollection(ctx, name)
		if err != nil {
			return err
		}
		n, err := coll.Count(ctx)
		if err != nil {
			return err
		}
		out.Collections = append(out.Collections, CollectionStats{Name: name, Chunks: n})
	}

	out.Queries = readStatsSnapshot()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printStats(cmd, out)
}

// readStatsSnapshot loads the last session's telemetry, if any.
func readStatsSnapshot() *telemetry.Snapshot {
	data, err := os.ReadFile(statsFilePath())
	if err != nil {
		return nil
	}
	var snap telemetry.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}
	return &snap
}

func printStats(cmd *cobra.Command, stats StatsOutput) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Store: %s\n\n", stats.StorePath)
	fmt.Fprintln(w, "Collections:")
	if len(stats.Collections) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, c := range stats.Collections {
		fmt.Fprintf(w, "  %-20s %d chunks\n", c.Name, c.Chunks)
	}

	if stats.Queries == nil {
		fmt.Fprintln(w, "\nNo query telemetry recorded yet (written when the server stops).")
		return nil
	}

	q := stats.Queries
	fmt.Fprintf(w, "\nQueries since %s:\n", q.Since.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Total:        %d\n", q.TotalQueries)
	fmt.Fprintf(w, "  Failed:       %d\n", q.FailedQueries)
	fmt.Fprintf(w, "  Zero results: %d (%.1f%%)\n", q.ZeroResultCount, q.ZeroResultPercentage())

	if len(q.TopTerms) > 0 {
		fmt.Fprintln(w, "  Top terms:")
		for i, t := range q.TopTerms {
			if i >= 10 {
				break
			}
			fmt.Fprintf(w, "    %-20s %d\n", t.Term, t.Count)
		}
	}

	if len(q.LatencyDistribution) > 0 {
		fmt.Fprintln(w, "  Latency:")
		for _, b := range []telemetry.LatencyBucket{
			telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100,
			telemetry.BucketP500, telemetry.BucketP1000,
		} {
			if n, ok := q.LatencyDistribution[b]; ok {
				fmt.Fprintf(w, "    %-6s %d\n", b, n)
			}
		}
	}
	return nil
}
