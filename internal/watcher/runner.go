package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lorekeep/lorekeep/internal/index"
)

// Updater is the indexing surface watch mode drives.
type Updater interface {
	Update(ctx context.Context) (*index.Summary, error)
}

// Runner consumes change batches and runs one incremental update per batch.
// Update failures are logged and watching continues; a concurrent run
// holding the index lock just skips the batch, since the next change will
// trigger another update over the same files.
type Runner struct {
	updater Updater
	batches <-chan []Event
	logger  *slog.Logger

	// OnSummary, when set, receives the summary of each completed update.
	OnSummary func(*index.Summary)

	// OnError, when set, receives update failures other than a busy index
	// lock or shutdown.
	OnError func(error)
}

func NewRunner(updater Updater, batches <-chan []Event, logger *slog.Logger) (*Runner, error) {
	if updater == nil {
		return nil, fmt.Errorf("updater is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{updater: updater, batches: batches, logger: logger}, nil
}

// Run processes batches until the context is cancelled or the batch channel
// closes. Both are clean shutdowns.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-r.batches:
			if !ok {
				return nil
			}
			if len(batch) == 0 {
				continue
			}
			r.handle(ctx, batch)
		}
	}
}

func (r *Runner) handle(ctx context.Context, batch []Event) {
	r.logger.Info("library_changed",
		"changes", len(batch),
		"paths", samplePaths(batch, 3))

	sum, err := r.updater.Update(ctx)
	if err != nil {
		switch {
		case errors.Is(err, index.ErrIndexBusy):
			r.logger.Warn("watch_update_skipped", "reason", "another indexing run holds the lock")
		case ctx.Err() != nil:
			// Shutting down.
		default:
			r.logger.Error("watch_update_failed", "error", err)
			if r.OnError != nil {
				r.OnError(err)
			}
		}
		return
	}

	if r.OnSummary != nil {
		r.OnSummary(sum)
	}
	r.logger.Info("watch_update_complete",
		"added", sum.Added,
		"modified", sum.Modified,
		"removed", sum.Removed,
		"failed", len(sum.Failed),
		"duration", sum.Duration.Round(time.Millisecond).String())
}

// samplePaths returns up to n batch paths in stable order for logging.
func samplePaths(batch []Event, n int) []string {
	paths := make([]string, 0, len(batch))
	for _, ev := range batch {
		paths = append(paths, ev.Path)
	}
	sort.Strings(paths)
	if len(paths) > n {
		paths = paths[:n]
	}
	return paths
}
