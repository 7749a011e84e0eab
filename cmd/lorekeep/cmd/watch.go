package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lorekeep/lorekeep/internal/index"
	"github.com/lorekeep/lorekeep/internal/output"
	"github.com/lorekeep/lorekeep/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch the library and reindex on change",
		Long: `Run an incremental update, then watch the library tree and reindex
whenever documents change. Change bursts (editor saves, git checkouts)
are debounced into a single update.

Updates that fail, for example because the embedding provider restarts,
are logged and retried on the next change. Stop with Ctrl-C.`,
		Example: `  lorekeep watch

  # Calm a noisy tree with a longer quiet period
  lorekeep watch --debounce 10s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, argPath(args), debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "Quiet period before a change burst triggers an update")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, debounce time.Duration) error {
	cfg, err := loadLibrary(path)
	if err != nil {
		return err
	}
	if err := requireIndex(cfg); err != nil {
		return err
	}

	logger, cleanup := setupLogging(cfg)
	defer cleanup()

	sess, err := openSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	indexer, err := sess.newIndexer(nil)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())

	// Bring the index current before watching, so the first change batch
	// only carries its own delta.
	summary, err := indexer.Update(ctx)
	if err != nil {
		return err
	}
	printUpdateLine(out, summary)

	w, err := watcher.New(cfg.Library, watcher.Options{Debounce: debounce}, logger)
	if err != nil {
		return err
	}

	out.Statusf("👀", "watching %s (%s, debounce %s), Ctrl-C to stop",
		cfg.Library.Root, w.Backend(), debounce)

	runner, err := watcher.NewRunner(indexer, w.Batches(), logger)
	if err != nil {
		return err
	}
	runner.OnSummary = func(summary *index.Summary) {
		printUpdateLine(out, summary)
	}
	runner.OnError = func(err error) {
		out.Warningf("update failed: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx)
	})
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		return drainWatchErrors(gctx, w.Errors(), logger)
	})

	err = g.Wait()
	if dropped := w.Dropped(); dropped > 0 {
		out.Warningf("%d change batches were dropped while updates were running", dropped)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	out.Plain("stopped")
	return nil
}

// drainWatchErrors logs non-fatal watcher errors until the channel closes.
func drainWatchErrors(ctx context.Context, errs <-chan error, logger *slog.Logger) error {
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("watch_error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func printUpdateLine(out *output.Writer, summary *index.Summary) {
	ts := time.Now().Format("15:04:05")
	changed := summary.Added + summary.Modified + summary.Removed
	if changed == 0 {
		out.Plainf("[%s] index current (%d documents)", ts, summary.Unchanged)
		return
	}

	line := fmt.Sprintf("[%s] +%d ~%d -%d (%d chunks, %s)",
		ts, summary.Added, summary.Modified, summary.Removed,
		summary.Chunks, summary.Duration.Round(time.Millisecond))
	if summary.HasFailures() {
		line += fmt.Sprintf(", %d failed", len(summary.Failed))
	}
	out.Plain(line)

	for _, f := range summary.Failed {
		out.Warningf("%s: %v", f.Path, f.Err)
	}
}
