package main

import (
	"os"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscope/explorer-cli/internal/grouper"
)

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// A run with nothing extracted has nothing to group; the command must fail so
// pipelines notice instead of reading an empty summary as success.
func TestGroupCommandFailsWithoutExtractions(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, runCommand(t, "explorer", "migrate"))

	err = runCommand(t, "explorer", "group", "run-empty")
	require.Error(t, err)
	assert.True(t, eris.Is(err, grouper.ErrNoExtractions))
}

func TestGroupCommandRejectsBadWeights(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile("config.yaml", []byte(`
grouper:
  signal_weights:
    cod: -0.2
`), 0o644))

	err = runCommand(t, "explorer", "group", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signal_weights.cod must be >= 0")
}
