package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geoflow-cds/geoflow/internal/agent"
)

func newAgentsCmd(rootOpts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the configured agent hierarchy",
		Long:  `Display the main agents and subagents from the agents configuration file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			registry, err := agent.LoadRegistry(cfg.Agents.Path)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(registry.Snapshot())
			}
			return printAgents(cmd, registry)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printAgents(cmd *cobra.Command, registry *agent.Registry) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Main agents:")
	for _, name := range registry.ListMainAgents() {
		a, err := registry.MainAgent(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s (subagents: %d)\n", a.Name, len(a.Subagents))
		for _, sub := range a.Subagents {
			fmt.Fprintf(out, "    - %s\n", sub)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Subagents:")
	for _, name := range registry.ListSubagents() {
		a, err := registry.Subagent(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s [%s/%s]\n", a.Name, a.Model.Provider, a.Model.Model)
		if a.Description != "" {
			fmt.Fprintf(out, "    %s\n", a.Description)
		}
	}
	return nil
}
