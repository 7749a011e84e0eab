package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/config"
)

func testLibrary(root string) config.LibraryConfig {
	return config.LibraryConfig{
		Root:        root,
		Extensions:  []string{".md", ".markdown"},
		ExcludeDirs: []string{".git", config.DataDirName, "node_modules"},
	}
}

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(testLibrary(root), Options{Debounce: 40 * time.Millisecond, BufferSize: 16}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

// startTestWatcher runs Start in the background and blocks until the
// library tree is registered.
func startTestWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not shut down")
		}
	})
	require.Eventually(t, func() bool { return w.watchedCount() > 0 },
		2*time.Second, 10*time.Millisecond, "watch registration never completed")
}

func expectQuiet(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case batch := <-w.Batches():
		t.Fatalf("unexpected batch: %+v", batch)
	case <-time.After(wait):
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.LibraryConfig{}, Options{}, testLogger())
	require.Error(t, err)

	_, err = New(config.LibraryConfig{Root: "relative/root", Extensions: []string{".md"}}, Options{}, testLogger())
	require.Error(t, err)

	_, err = New(config.LibraryConfig{Root: t.TempDir()}, Options{}, testLogger())
	require.Error(t, err)
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")
	w, err := New(testLibrary(root), Options{}, testLogger())
	require.NoError(t, err)
	defer w.Stop()

	err = w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accessible")
}

func TestWatcher_ReportsDocumentLifecycle(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	startTestWatcher(t, w)

	path := filepath.Join(root, "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("# Guide\n"), 0o644))

	batch := awaitBatch(t, w.Batches(), 3*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "guide.md", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Op)

	require.NoError(t, os.WriteFile(path, []byte("# Guide\n\nmore\n"), 0o644))
	batch = awaitBatch(t, w.Batches(), 3*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Op)

	require.NoError(t, os.Remove(path))
	batch = awaitBatch(t, w.Batches(), 3*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Op)
}

func TestWatcher_IgnoresForeignAndExcluded(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.DataDirName), 0o755))

	w := newTestWatcher(t, root)
	startTestWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("plain"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, config.DataDirName, "scratch.md"), []byte("# x"), 0o644))

	expectQuiet(t, w, 300*time.Millisecond)
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	startTestWatcher(t, w)

	sub := filepath.Join(root, "chapters")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "one.md"), []byte("# One\n"), 0o644))

	batch := awaitBatch(t, w.Batches(), 3*time.Second)
	require.NotEmpty(t, batch)

	ops := make(map[string]Op, len(batch))
	for _, ev := range batch {
		ops[ev.Path] = ev.Op
	}
	assert.Contains(t, ops, "chapters/one.md")
}

func TestWatcher_RenameSurfacesBothPaths(t *testing.T) {
	root := t.TempDir()
	oldPath := filepath.Join(root, "draft.md")
	require.NoError(t, os.WriteFile(oldPath, []byte("# Draft\n"), 0o644))

	w := newTestWatcher(t, root)
	startTestWatcher(t, w)

	require.NoError(t, os.Rename(oldPath, filepath.Join(root, "final.md")))

	// Both sides usually share a batch, but delivery order is not
	// guaranteed, so collect until both paths have been seen.
	ops := make(map[string]Op, 2)
	deadline := time.After(3 * time.Second)
	for len(ops) < 2 {
		select {
		case batch := <-w.Batches():
			for _, ev := range batch {
				ops[ev.Path] = ev.Op
			}
		case <-deadline:
			t.Fatalf("timed out, saw %+v", ops)
		}
	}
	assert.Equal(t, OpRename, ops["draft.md"])
	assert.Equal(t, OpCreate, ops["final.md"])
}

func TestWatcher_StopClosesChannels(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)
	startTestWatcher(t, w)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-w.Batches():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("batch channel never closed")
		}
	}
}

func TestWatcher_Backend(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())
	assert.Equal(t, "fsnotify", w.Backend())
}

func TestFilter(t *testing.T) {
	f := newFilter(testLibrary("/lib"))

	assert.True(t, f.wantsFile("a.md"))
	assert.True(t, f.wantsFile("A.MD"))
	assert.True(t, f.wantsFile("docs/deep/c.markdown"))
	assert.False(t, f.wantsFile("notes.txt"))
	assert.False(t, f.wantsFile("README"))

	assert.True(t, f.skipPath(".git/objects/a.md"))
	assert.True(t, f.skipPath("node_modules/pkg/readme.md"))
	assert.True(t, f.skipPath(config.DataDirName+"/library.md"))
	assert.False(t, f.skipPath("docs/guide.md"))

	assert.True(t, f.skipDir(".git"))
	assert.True(t, f.skipDir(config.DataDirName))
	assert.False(t, f.skipDir("docs"))
}

func TestFilter_AlwaysExcludesDataDir(t *testing.T) {
	cfg := testLibrary("/lib")
	cfg.ExcludeDirs = nil // even when the config drops the defaults
	f := newFilter(cfg)

	assert.True(t, f.skipDir(config.DataDirName))
	assert.True(t, f.skipDir(".git"))
	assert.False(t, f.skipDir("node_modules"))
}
