package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/geoflow-cds/geoflow/configs"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write starter configuration files",
		Long: `Write annotated geoflow.yaml and config/agents.yaml templates into
the given directory (default: current directory). Existing files are
left alone unless --force is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	targets := []struct {
		path    string
		content string
	}{
		{filepath.Join(dir, "geoflow.yaml"), configs.ConfigTemplate},
		{filepath.Join(dir, "config", "agents.yaml"), configs.AgentsTemplate},
	}

	for _, t := range targets {
		if fileExists(t.path) && !force {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, skipping (use --force to overwrite)\n", t.path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(t.path, []byte(t.content), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", t.path)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "  1. geoflow ingest <chunks.json>   # load the corpus")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. geoflow serve --config geoflow.yaml")
	return nil
}
