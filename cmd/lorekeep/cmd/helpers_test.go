package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/config"
)

// newLibrary creates a library root with the given documents and a config
// pinning the static embedder, so tests never reach a network provider.
func newLibrary(t *testing.T, docs map[string]string) string {
	t.Helper()

	root := t.TempDir()
	t.Setenv("LOREKEEP_EMBEDDER", "static")
	t.Setenv("LOREKEEP_VECTOR_BACKEND", "hnsw")

	cfgYAML := "embeddings:\n  provider: static\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte(cfgYAML), 0o644))

	for rel, content := range docs {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// sampleDocs is a small library with distinctive vocabulary per document.
func sampleDocs() map[string]string {
	return map[string]string{
		"notes/beacons.md": "# Harbor Beacons\n\nThe harbor beacons are serviced every spring tide.\nKeepers log lamp oil consumption in the ledger.\n",
		"notes/tides.md":   "# Tide Tables\n\nSpring tides peak twice a month.\nNeap tides barely move the moorings.\n",
	}
}

// runCommand executes the CLI with args against a fresh root command and
// returns everything written to stdout and stderr combined.
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

// chdir switches the working directory for commands that resolve the
// library from the current directory, restoring it afterwards.
func chdir(t *testing.T, dir string) {
	t.Helper()

	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

// rebuildLibrary seeds the index for tests that need one.
func rebuildLibrary(t *testing.T, root string) {
	t.Helper()

	out, err := runCommand(t, "rebuild", root, "--no-tui")
	require.NoError(t, err, "rebuild output:\n%s", out)
}
