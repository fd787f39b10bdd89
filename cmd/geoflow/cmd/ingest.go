package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/geoflow-cds/geoflow/internal/corpus"
	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

// ingestChunk is one corpus entry as found in the extraction JSON files.
type ingestChunk struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

func newIngestCmd(rootOpts *rootOptions) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "ingest <file.json> [file.json...]",
		Short: "Load regulatory chunk files into the corpus store",
		Long: `Ingest pre-chunked regulatory documents into the SQLite corpus store.

Each input file is a JSON array of {"content", "source", "metadata"}
objects. Chunks are appended in file order; ingest order determines the
corpus order used for deterministic tie-breaks.

Examples:
  geoflow ingest data/gdpr.json data/nist.json
  geoflow ingest --collection sandbox data/test.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if collection == "" {
				collection = cfg.Store.Collection
			}
			return runIngest(cmd.Context(), cmd, cfg.Store.Path, collection, args)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "",
		"Target collection (defaults to the configured one)")
	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, storePath, collection string, files []string) error {
	store, err := corpus.OpenSQLite(storePath, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if _, err := store.CreateCollection(ctx, collection); err != nil {
		return err
	}

	total := 0
	for _, file := range files {
		chunks, err := readChunkFile(file)
		if err != nil {
			return err
		}
		if err := store.AddChunks(ctx, collection, chunks); err != nil {
			return err
		}
		total += len(chunks)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", file, len(chunks))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d chunks into %q (%s)\n",
		total, collection, storePath)
	return nil
}

// readChunkFile parses one extraction JSON file into store chunks,
// stamping source_file and json_file metadata.
func readChunkFile(path string) ([]corpus.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrCodeInvalidArgument,
			fmt.Sprintf("cannot read %s", path))
	}

	var entries []ingestChunk
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrCodeInvalidArgument,
			fmt.Sprintf("%s is not a JSON chunk array", path))
	}

	chunks := make([]corpus.Chunk, 0, len(entries))
	for _, e := range entries {
		if e.Content == "" {
			continue
		}

		meta := make(map[string]string, len(e.Metadata)+2)
		for k, v := range e.Metadata {
			meta[k] = v
		}
		if e.Source != "" {
			meta[corpus.MetaSourceFile] = e.Source
		}
		meta[corpus.MetaJSONFile] = filepath.Base(path)

		chunks = append(chunks, corpus.Chunk{Content: e.Content, Metadata: meta})
	}
	return chunks, nil
}
