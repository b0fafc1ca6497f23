package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMemoryConfig writes a config using the in-memory store and one segment.
func writeMemoryConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	segDir := filepath.Join(dir, "segments")
	require.NoError(t, os.MkdirAll(segDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(segDir, "clickers.yaml"), []byte(
		"name: frequent_clickers\nevent_name: BUTTON_CLICK\nthreshold: 2\n"), 0o644))

	path := filepath.Join(dir, "segmentd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"database:\n  type: memory\nlog:\n  level: error\nsegmentation:\n  segments_dir: "+segDir+"\n"), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := bytes.NewBufferString("")
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func Test_Commands(t *testing.T) {
	config := writeMemoryConfig(t)

	t.Run("help lists subcommands", func(t *testing.T) {
		out, err := run(t, "help")
		require.NoError(t, err)
		assert.Contains(t, out, "Available Commands")
		for _, name := range []string{"serve", "accumulate", "resolve", "expire", "migrate"} {
			assert.Contains(t, out, name)
		}
	})

	t.Run("accumulate flags", func(t *testing.T) {
		cmd := newAccumulateCommand(&rootOptions{})
		assert.Equal(t, "accumulate", cmd.Use)
		assert.Equal(t, "string", cmd.Flag("event").Value.Type())
		assert.Equal(t, "string", cmd.Flag("lower-bound").Value.Type())
	})

	t.Run("accumulate requires event", func(t *testing.T) {
		_, err := run(t, "--config", config, "accumulate")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--event is required")
	})

	t.Run("accumulate on empty log", func(t *testing.T) {
		out, err := run(t, "--config", config, "accumulate", "--event", "BUTTON_CLICK", "--lower-bound", "1h")
		require.NoError(t, err)
		assert.Contains(t, out, "events_scanned=0")
	})

	t.Run("resolve unknown segment", func(t *testing.T) {
		_, err := run(t, "--config", config, "resolve", "--segment", "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown segment")
	})

	t.Run("resolve rejects bad horizon", func(t *testing.T) {
		_, err := run(t, "--config", config, "resolve", "--segment", "frequent_clickers", "--horizon", "soon")
		require.Error(t, err)
	})

	t.Run("resolve with no stale users", func(t *testing.T) {
		out, err := run(t, "--config", config, "resolve", "--segment", "frequent_clickers", "--horizon", "2023-01-01T00:00:00Z")
		require.NoError(t, err)
		assert.Contains(t, out, "affected=0")
	})

	t.Run("expire", func(t *testing.T) {
		out, err := run(t, "--config", config, "expire")
		require.NoError(t, err)
		assert.Contains(t, out, "expired=0")
	})

	t.Run("migrate is a no-op for memory", func(t *testing.T) {
		_, err := run(t, "--config", config, "migrate")
		require.NoError(t, err)
	})

	t.Run("missing explicit config fails", func(t *testing.T) {
		_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "expire")
		require.Error(t, err)
	})
}
