package scanner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testLibraryConfig(root string) config.LibraryConfig {
	return config.LibraryConfig{
		Root:             root,
		Extensions:       []string{".md", ".markdown"},
		ExcludeDirs:      []string{".git", ".lorekeep", "node_modules"},
		RespectGitignore: true,
		MaxFileSize:      10 * 1024 * 1024,
	}
}

func TestNew_Validation(t *testing.T) {
	logger := testLogger()

	_, err := New(config.LibraryConfig{Extensions: []string{".md"}}, logger)
	assert.Error(t, err, "empty root")

	_, err = New(config.LibraryConfig{Root: "relative/path", Extensions: []string{".md"}}, logger)
	assert.Error(t, err, "relative root")

	_, err = New(config.LibraryConfig{Root: t.TempDir()}, logger)
	assert.Error(t, err, "no extensions")
}

func TestScanner_Scan_FindsMarkdownRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "readme.md", "# Readme")
	writeFile(t, root, "notes/design.md", "# Design")
	writeFile(t, root, "notes/deep/nested.markdown", "# Nested")
	writeFile(t, root, "notes/image.png", "not a doc")
	writeFile(t, root, "script.sh", "echo hi")

	s, err := New(testLibraryConfig(root), testLogger())
	require.NoError(t, err)

	snap, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Files, 3)
	assert.Contains(t, snap.Files, "readme.md")
	assert.Contains(t, snap.Files, "notes/design.md")
	assert.Contains(t, snap.Files, "notes/deep/nested.markdown")
	assert.Empty(t, snap.Skipped)
	assert.Equal(t, root, snap.Root)
}

func TestScanner_Scan_FileRecord(t *testing.T) {
	root := t.TempDir()
	content := "# Title\n\nBody text."
	writeFile(t, root, "doc.md", content)

	s, err := New(testLibraryConfig(root), testLogger())
	require.NoError(t, err)

	snap, err := s.Scan(context.Background())
	require.NoError(t, err)

	f, ok := snap.Files["doc.md"]
	require.True(t, ok)
	assert.Equal(t, "doc.md", f.Path)
	assert.Equal(t, filepath.Join(root, "doc.md"), f.AbsPath)
	assert.Equal(t, int64(len(content)), f.Size)
	assert.False(t, f.ModTime.IsZero())
	assert.Equal(t, Fingerprint([]byte(content)), f.Fingerprint)

	read, err := f.ReadContent()
	require.NoError(t, err)
	assert.Equal(t, content, string(read))
}

func TestScanner_Scan_ExtensionsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "upper.MD", "# Upper")

	cfg := testLibraryConfig(root)
	cfg.Extensions = []string{"md"} // missing dot is tolerated

	s, err := New(cfg, testLogger())
	require.NoError(t, err)

	snap, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Files, "upper.MD")
}

func TestScanner_Scan_ExcludesDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "# Keep")
	writeFile(t, root, ".git/objects/readme.md", "# Git internals")
	writeFile(t, root, ".lorekeep/cache.md", "# Data dir")
	writeFile(t, root, "node_modules/pkg/readme.md", "# Dep readme")

	s, err := New(testLibraryConfig(root), testLogger())
	require.NoError(t, err)

	snap, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Files, 1)
	assert.Contains(t, snap.Files, "keep.md")
}

func TestScanner_Scan_SkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.md", "tiny")
	writeFile(t, root, "big.md", string(make([]byte, 100)))

	cfg := testLibraryConfig(root)
	cfg.MaxFileSize = 50

	s, err := New(cfg, testLogger())
	require.NoError(t, err)

	snap, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Contains(t, snap.Files, "small.md")
	assert.NotContains(t, snap.Files, "big.md")
	require.Len(t, snap.Skipped, 1)
	assert.Equal(t, "big.md", snap.Skipped[0].Path)
	assert.Equal(t, SkipTooLarge, snap.Skipped[0].Reason)
}

func TestScanner_Scan_RespectsRootGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "drafts/\n*.tmp.md\n")
	writeFile(t, root, "keep.md", "# Keep")
	writeFile(t, root, "scratch.tmp.md", "# Scratch")
	writeFile(t, root, "drafts/wip.md", "# WIP")

	s, err := New(testLibraryConfig(root), testLogger())
	require.NoError(t, err)

	snap, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Files, 1)
	assert.Contains(t, snap.Files, "keep.md")
}

func TestScanner_Scan_NestedGitignoreScopedToSubtree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "projects/.gitignore", "private.md\n")
	writeFile(t, root, "projects/private.md", "# Hidden")
	writeFile(t, root, "projects/public.md", "# Visible")
	// Same name outside the nested scope stays visible.
	writeFile(t, root, "private.md", "# Root level")

	s, err := New(testLibraryConfig(root), testLogger())
	require.NoError(t, err)

	snap, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Contains(t, snap.Files, "private.md")
	assert.Contains(t, snap.Files, "projects/public.md")
	assert.NotContains(t, snap.Files, "projects/private.md")
}

func TestScanner_Scan_GitignoreDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "ignored.md\n")
	writeFile(t, root, "ignored.md", "# Still scanned")

	cfg := testLibraryConfig(root)
	cfg.RespectGitignore = false

	s, err := New(cfg, testLogger())
	require.NoError(t, err)

	snap, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Files, "ignored.md")
}

func TestScanner_Scan_MissingRoot(t *testing.T) {
	cfg := testLibraryConfig(filepath.Join(t.TempDir(), "does-not-exist"))

	s, err := New(cfg, testLogger())
	require.NoError(t, err)

	_, err = s.Scan(context.Background())
	assert.Error(t, err)
}

func TestScanner_Scan_ContextCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "doc.md", "# Doc")

	s, err := New(testLibraryConfig(root), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint([]byte("content"))
	b := Fingerprint([]byte("content"))
	c := Fingerprint([]byte("different"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "sha256 hex digest")
}
