package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with the given args and captures output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// writeTestConfig writes a config file pointing every path into dir and
// selecting the offline static embedder.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	agentsPath := filepath.Join(dir, "agents.yaml")
	agentsYAML := `main_agents:
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
	require.NoError(t, os.WriteFile(agentsPath, []byte(agentsYAML), 0o644))

	configPath := filepath.Join(dir, "geoflow.yaml")
	configYAML := fmt.Sprintf(`store:
  path: %s
  collection: regulations
embeddings:
  provider: static
agents:
  path: %s
logging:
  level: error
`, filepath.Join(dir, "corpus.db"), agentsPath)
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	return configPath
}

// writeChunkFile writes an extraction JSON file of test chunks.
func writeChunkFile(t *testing.T, dir, name string, contents []string) string {
	t.Helper()

	type entry struct {
		Content string `json:"content"`
		Source  string `json:"source"`
	}
	entries := make([]entry, len(contents))
	for i, c := range contents {
		entries[i] = entry{Content: c, Source: "test.pdf"}
	}

	data, err := json.Marshal(entries)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := runCommand(t, "--help")
	require.NoError(t, err)

	for _, name := range []string{"init", "serve", "search", "agents", "ingest", "stats", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRootUnknownConfigFails(t *testing.T) {
	_, err := runCommand(t, "agents", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
