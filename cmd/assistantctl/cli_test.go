package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"seed", "reindex", "resolve", "search"} {
		assert.True(t, names[want], want)
	}

	assert.NotNil(t, resolveCmd.Flags().Lookup("from-seed"))
	assert.NotNil(t, searchCmd.Flags().Lookup("from-seed"))
	assert.NotNil(t, reindexCmd.Flags().Lookup("full"))
}

func TestRunSeed_RejectsInvalidFileBeforeConnecting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: [{key: m, provider: nowhere}]\n"), 0o600))

	err := runSeed(&cobra.Command{}, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestRunSeed_MissingFile(t *testing.T) {
	err := runSeed(&cobra.Command{}, []string{filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestRunResolve_RejectsUnknownTier(t *testing.T) {
	resolveTier = "platinum"
	defer func() { resolveTier = "GUEST" }()

	err := runResolve(&cobra.Command{}, []string{"pricing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tier")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\t c", 10))
	assert.Equal(t, "héllo...", preview("héllo world", 5))
}
