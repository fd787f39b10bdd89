package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchWithoutStoreFails(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	_, err := runCommand(t, "search", "--config", configPath, "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geoflow ingest")
}

func TestSearchTextFormat(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	chunkFile := writeChunkFile(t, dir, "regs.json", []string{
		"Data residency requirements apply to cloud providers.",
	})

	_, err := runCommand(t, "ingest", "--config", configPath, chunkFile)
	require.NoError(t, err)

	out, err := runCommand(t, "search", "--config", configPath,
		"--format", "text", "data residency")
	require.NoError(t, err)
	assert.Contains(t, out, "Found")
	assert.Contains(t, out, "test.pdf")
}
