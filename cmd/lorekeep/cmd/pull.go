package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/index"
	"github.com/lorekeep/lorekeep/internal/output"
	"github.com/lorekeep/lorekeep/internal/repos"
)

func newPullCmd() *cobra.Command {
	var (
		jsonOutput bool
		update     bool
	)

	cmd := &cobra.Command{
		Use:   "pull [path]",
		Short: "Sync configured git repositories into the library",
		Long: `Clone or pull every git repository listed under 'repos:' in the
configuration. Missing checkouts are cloned; existing ones are
fast-forwarded. One failing repository never stops the others.

With --update, a successful sync that changed anything is followed by an
incremental index update.`,
		Example: `  lorekeep pull

  # Sync and reindex in one step
  lorekeep pull --update`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(cmd, argPath(args), jsonOutput, update)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&update, "update", false, "Run an incremental index update after a sync that changed anything")

	return cmd
}

func runPull(cmd *cobra.Command, path string, jsonOutput, update bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadLibrary(path)
	if err != nil {
		return err
	}

	logger, cleanup := setupLogging(cfg)
	defer cleanup()

	out := output.New(cmd.OutOrStdout())

	if len(cfg.Repos) == 0 {
		out.Warningf("no repositories configured; add a 'repos:' section to %s", config.Path(cfg.Library.Root))
		return nil
	}

	mgr, err := repos.NewManager(cfg.Library.Root, cfg.Repos, logger)
	if err != nil {
		return err
	}

	results, err := mgr.PullAll(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return out.JSON(pullResponse(results))
	}

	var failed, updated int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			out.Errorf("%s: %v", r.Name, r.Err)
		case r.Updated:
			updated++
			if head := mgr.Head(r.Name); head != "" {
				out.Successf("%s updated to %s (%s)", r.Name, head, r.Duration.Round(time.Millisecond))
			} else {
				out.Successf("%s updated (%s)", r.Name, r.Duration.Round(time.Millisecond))
			}
		default:
			out.Statusf("  ", "%s already up to date", r.Name)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed", failed, len(results))
	}

	if update && updated > 0 {
		out.Newline()
		return runIndexRun(ctx, cmd, index.ModeUpdate, path, true)
	}

	return nil
}

// pullJSON is the machine-readable shape of a pull run.
type pullJSON struct {
	Synced  int              `json:"synced"`
	Failed  int              `json:"failed"`
	Results []pullJSONResult `json:"results"`
}

type pullJSONResult struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Updated    bool   `json:"updated"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func pullResponse(results []repos.PullResult) pullJSON {
	resp := pullJSON{Results: make([]pullJSONResult, 0, len(results))}
	for _, r := range results {
		jr := pullJSONResult{
			Name:       r.Name,
			Path:       r.Path,
			Updated:    r.Updated,
			DurationMs: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
			resp.Failed++
		} else {
			resp.Synced++
		}
		resp.Results = append(resp.Results, jr)
	}
	return resp
}
