package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

const testAgentsYAML = `# GeoFlow agent hierarchy
main_agents:
  compliance_lead:
    name: compliance_lead
    instructions: Route compliance questions to the right subagent.
    subagents:
      - regulation_researcher
      - report_writer

subagents:
  regulation_researcher:
    name: regulation_researcher
    description: Finds relevant regulatory passages.
    prompt: Search the corpus and cite sources.
    model:
      model: gpt-4o
      model_provider: openai
  report_writer:
    name: report_writer
    description: Drafts compliance reports.
    prompt: Write clear, sourced reports.
`

func writeAgentsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry(writeAgentsFile(t, testAgentsYAML))
	require.NoError(t, err)

	main, err := r.MainAgent("compliance_lead")
	require.NoError(t, err)
	assert.Equal(t, []string{"regulation_researcher", "report_writer"}, main.Subagents)
	assert.Contains(t, main.Instructions, "Route compliance questions")
}

func TestLoadRegistryMissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeConfigNotFound))
}

func TestSubagentModelDefaulting(t *testing.T) {
	r, err := LoadRegistry(writeAgentsFile(t, testAgentsYAML))
	require.NoError(t, err)

	// Declared model is kept.
	researcher, err := r.Subagent("regulation_researcher")
	require.NoError(t, err)
	require.NotNil(t, researcher.Model)
	assert.Equal(t, "gpt-4o", researcher.Model.Model)

	// Missing model falls back to the default.
	writer, err := r.Subagent("report_writer")
	require.NoError(t, err)
	require.NotNil(t, writer.Model)
	assert.Equal(t, DefaultSubagentModel, writer.Model.Model)
	assert.Equal(t, DefaultSubagentProvider, writer.Model.Provider)
}

func TestUnknownAgentListsAvailable(t *testing.T) {
	r, err := LoadRegistry(writeAgentsFile(t, testAgentsYAML))
	require.NoError(t, err)

	_, err = r.Subagent("nonexistent")
	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeAgentNotFound))

	var ge *geoerrors.GeoError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, []string{"regulation_researcher", "report_writer"}, ge.Details["available"])
}

func TestListAgents(t *testing.T) {
	r, err := LoadRegistry(writeAgentsFile(t, testAgentsYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"compliance_lead"}, r.ListMainAgents())
	assert.Equal(t, []string{"regulation_researcher", "report_writer"}, r.ListSubagents())
}

func TestUpdateInstructionsSubagent(t *testing.T) {
	path := writeAgentsFile(t, testAgentsYAML)
	r, err := LoadRegistry(path)
	require.NoError(t, err)

	backup, err := r.UpdateInstructions("report_writer", false, "Write terse, sourced reports.")
	require.NoError(t, err)

	// The backup preserves the original content.
	original, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Contains(t, string(original), "Write clear, sourced reports.")

	// The registry view reflects the update.
	writer, err := r.Subagent("report_writer")
	require.NoError(t, err)
	assert.Equal(t, "Write terse, sourced reports.", writer.Prompt)

	// Comments survive the structural rewrite.
	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "# GeoFlow agent hierarchy")
}

func TestUpdateInstructionsMainAgent(t *testing.T) {
	path := writeAgentsFile(t, testAgentsYAML)
	r, err := LoadRegistry(path)
	require.NoError(t, err)

	_, err = r.UpdateInstructions("compliance_lead", true, "Delegate aggressively.\nAlways cite.")
	require.NoError(t, err)

	main, err := r.MainAgent("compliance_lead")
	require.NoError(t, err)
	assert.Equal(t, "Delegate aggressively.\nAlways cite.", main.Instructions)

	// Other agents are untouched.
	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "Finds relevant regulatory passages.")
}

func TestUpdateInstructionsUnknownAgent(t *testing.T) {
	r, err := LoadRegistry(writeAgentsFile(t, testAgentsYAML))
	require.NoError(t, err)

	_, err = r.UpdateInstructions("ghost", false, "prompt")
	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeAgentNotFound))
}

func TestUpdateInstructionsRejectsEmptyPrompt(t *testing.T) {
	r, err := LoadRegistry(writeAgentsFile(t, testAgentsYAML))
	require.NoError(t, err)

	_, err = r.UpdateInstructions("report_writer", false, "")
	require.Error(t, err)
	assert.True(t, geoerrors.HasCode(err, geoerrors.ErrCodeInvalidArgument))
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := writeAgentsFile(t, testAgentsYAML)
	r, err := LoadRegistry(path)
	require.NoError(t, err)

	changed := strings.Replace(testAgentsYAML,
		"Write clear, sourced reports.", "Completely new prompt.", 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))

	require.NoError(t, r.Reload())
	writer, err := r.Subagent("report_writer")
	require.NoError(t, err)
	assert.Equal(t, "Completely new prompt.", writer.Prompt)
}
