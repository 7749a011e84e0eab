package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check the library setup and diagnose problems",
		Long: `Run diagnostics against the library:
  - data directory writable
  - free disk space and file descriptor limits
  - index database present and passing its integrity check
  - embedding provider reachable
  - vector index dimensions match the configured embedder
  - every chunk has a vector and every vector a chunk

Failures of required checks exit non-zero. Embedder reachability is a
warning; searching needs the provider but the index itself is fine.`,
		Example: `  lorekeep doctor

  # Detailed output
  lorekeep doctor --verbose

  # Machine-readable output for scripts
  lorekeep doctor --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, argPath(args), verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, path string, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadLibrary(path)
	if err != nil {
		return err
	}

	checker := preflight.New(cfg,
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	results := checker.RunAll(ctx)

	if jsonOutput {
		if err := checker.PrintJSON(results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)

		if !preflight.NeedsCheck(cfg.DataDir()) {
			if age := preflight.MarkerAge(cfg.DataDir()); age > 0 {
				cmd.Printf("\nLast successful check: %s ago\n", formatAge(age))
			}
		}
	}

	if checker.HasCriticalFailures(results) {
		_ = preflight.ClearMarker(cfg.DataDir())
		return fmt.Errorf("system check failed")
	}

	if err := preflight.MarkPassed(cfg.DataDir()); err != nil {
		// The marker only gates advisory hints; failing to write it is
		// not a diagnostic failure.
		cmd.PrintErrf("note: could not record check result: %v\n", err)
	}

	return nil
}

// formatAge renders a duration in the largest sensible unit.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
