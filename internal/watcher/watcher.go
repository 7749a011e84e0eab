package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lorekeep/lorekeep/internal/config"
)

// Watcher streams debounced batches of document changes under the library
// root. fsnotify is the primary mechanism; a polling fallback covers
// filesystems where native notifications are unavailable.
type Watcher struct {
	opts   Options
	logger *slog.Logger
	filter *filter
	root   string

	fs     *fsnotify.Watcher
	poller *poller
	deb    *debouncer

	batches chan []Event
	errs    chan error
	stopCh  chan struct{}

	mu      sync.Mutex
	watched map[string]bool
	stopped bool
	dropped atomic.Uint64
}

// New creates a watcher for the library described by cfg. The library root
// must be absolute, which config.Load guarantees.
func New(cfg config.LibraryConfig, opts Options, logger *slog.Logger) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("library root is required")
	}
	if !filepath.IsAbs(cfg.Root) {
		return nil, fmt.Errorf("library root must be absolute, got %s", cfg.Root)
	}
	if len(cfg.Extensions) == 0 {
		return nil, fmt.Errorf("at least one document extension is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	w := &Watcher{
		opts:    opts,
		logger:  logger,
		filter:  newFilter(cfg),
		root:    cfg.Root,
		deb:     newDebouncer(opts.Debounce, logger),
		batches: make(chan []Event, opts.BufferSize),
		errs:    make(chan error, 8),
		stopCh:  make(chan struct{}),
		watched: make(map[string]bool),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("fsnotify_unavailable", "error", err, "fallback", "polling")
		w.poller = newPoller(cfg.Root, opts.PollInterval, w.filter)
	} else {
		w.fs = fsw
	}
	return w, nil
}

// Backend reports which mechanism the watcher uses.
func (w *Watcher) Backend() string {
	if w.fs != nil {
		return "fsnotify"
	}
	return "polling"
}

// Start watches until the context is cancelled or Stop is called. Context
// cancellation is a clean shutdown, not an error.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := os.Stat(w.root); err != nil {
		return fmt.Errorf("library root not accessible: %w", err)
	}

	defer func() { _ = w.Stop() }()

	go w.forward()

	if w.fs != nil {
		return w.runFsnotify(ctx)
	}

	w.logger.Info("watch_started",
		"backend", "polling",
		"root", w.root,
		"interval", w.opts.PollInterval.String())
	return w.poller.run(ctx, w.stopCh, w.deb.add, w.fail)
}

// Batches delivers debounced change batches. Closed when the watcher stops.
func (w *Watcher) Batches() <-chan []Event {
	return w.batches
}

// Errors delivers non-fatal watch errors. Closed when the watcher stops.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Stop releases the watcher and closes its channels. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.deb.stop()

	var err error
	if w.fs != nil {
		err = w.fs.Close()
	}
	close(w.batches)
	close(w.errs)
	return err
}

// Dropped reports how many batches were discarded because the consumer fell
// behind.
func (w *Watcher) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	if err := w.register(w.root, false, time.Time{}); err != nil {
		return fmt.Errorf("failed to watch library tree: %w", err)
	}

	w.logger.Info("watch_started",
		"backend", "fsnotify",
		"root", w.root,
		"directories", w.watchedCount())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleFsEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.fail(err)
		}
	}
}

func (w *Watcher) handleFsEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return
	}
	if w.filter.skipPath(rel) {
		return
	}

	now := time.Now()

	// A directory moved into the tree emits a single create for the
	// directory itself, so walk it: register nested directories and
	// announce the documents it brought along.
	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if err := w.register(ev.Name, true, now); err != nil {
				w.fail(err)
			}
			return
		}
	}

	// A watched directory that vanished cannot be enumerated any more.
	// One synthetic delete makes the next update reconcile its contents.
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetDir(rel) {
		w.deb.add(Event{Path: rel, Op: OpDelete, At: now})
		return
	}

	if !w.filter.wantsFile(rel) {
		return
	}

	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// chmod and friends
		return
	}

	w.deb.add(Event{Path: rel, Op: op, At: now})
}

// register adds root and every directory below it to the fsnotify watch.
// With announce set it also emits create events for documents found along
// the way, which covers directories moved in from outside the tree.
func (w *Watcher) register(root string, announce bool, now time.Time) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.filter.skipDir(d.Name()) {
				return fs.SkipDir
			}
			if addErr := w.fs.Add(path); addErr != nil {
				w.fail(fmt.Errorf("failed to watch %s: %w", rel, addErr))
				return nil
			}
			w.rememberDir(rel)
			return nil
		}

		if announce && w.filter.wantsFile(rel) && !w.filter.skipPath(rel) {
			w.deb.add(Event{Path: rel, Op: OpCreate, At: now})
		}
		return nil
	})
}

func (w *Watcher) rememberDir(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched[rel] = true
}

// forgetDir reports whether rel was a watched directory and drops it and
// everything below it from the registry.
func (w *Watcher) forgetDir(rel string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watched[rel] {
		return false
	}
	delete(w.watched, rel)
	prefix := rel + "/"
	for dir := range w.watched {
		if strings.HasPrefix(dir, prefix) {
			delete(w.watched, dir)
		}
	}
	return true
}

func (w *Watcher) watchedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// forward pumps flushed batches from the debouncer to the consumer channel.
func (w *Watcher) forward() {
	for batch := range w.deb.output() {
		if len(batch) == 0 {
			continue
		}
		w.emit(batch)
	}
}

func (w *Watcher) emit(batch []Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	select {
	case w.batches <- batch:
	default:
		n := w.dropped.Add(1)
		w.logger.Warn("batch_buffer_full", "size", len(batch), "dropped_total", n)
	}
}

func (w *Watcher) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	select {
	case w.errs <- err:
	default:
	}
}
