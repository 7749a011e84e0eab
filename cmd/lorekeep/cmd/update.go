package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/index"
)

func newUpdateCmd() *cobra.Command {
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "update [path]",
		Short: "Index only what changed since the last run",
		Long: `Diff the library tree against the stored state by content fingerprint
and reindex only added, modified, and removed documents. Unchanged
documents are never re-chunked or re-embedded.

Requires an existing index; run 'lorekeep rebuild' first.`,
		Example: `  # Refresh the library containing the working directory
  lorekeep update

  # Refresh a specific library
  lorekeep update ~/notes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndexRun(ctx, cmd, index.ModeUpdate, argPath(args), noTUI)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable the interactive progress display")

	return cmd
}
