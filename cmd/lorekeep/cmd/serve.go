package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/logging"
	"github.com/lorekeep/lorekeep/internal/mcp"
	"github.com/lorekeep/lorekeep/internal/preflight"
	"github.com/lorekeep/lorekeep/internal/repos"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve the library over MCP",
		Long: `Run lorekeep as a Model Context Protocol server for AI assistants.

The stdio transport reserves stdout exclusively for JSON-RPC frames, so
this command prints nothing; diagnostics go to the log file under
<library>/.lorekeep/logs/. Use 'lorekeep status' or 'lorekeep doctor' in
another terminal to inspect a running setup.

Tools exposed: search_semantic, docs_fetch, docs_fetch_by_hit,
index_rebuild, index_update, repos_pull_all, system_status.`,
		Example: `  # Typical MCP client configuration
  lorekeep serve ~/notes

  # Serve the library containing the working directory
  lorekeep serve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, transport, argPath(args))
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (stdio)")

	return cmd
}

func runServe(ctx context.Context, transport, path string) error {
	cfg, err := loadLibrary(path)
	if err != nil {
		return err
	}

	// File-only logging, even with --debug: the stdio transport owns
	// stdout, and stderr noise confuses some MCP clients.
	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupMCPModeWithLevel(cfg.LogFilePath(), level)
	if err != nil {
		cleanup = func() {}
	}
	defer cleanup()
	logger := slog.Default()

	if preflight.NeedsCheck(cfg.DataDir()) {
		logger.Info("preflight_not_verified", "hint", "run 'lorekeep doctor'")
	}
	if _, err := os.Stat(cfg.DatabasePath()); os.IsNotExist(err) {
		// Serving an empty library is allowed; the client can call
		// index_rebuild as its first operation.
		logger.Warn("serving_unindexed_library", "root", cfg.Library.Root)
	}

	sess, err := openSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	engine, err := sess.newEngine()
	if err != nil {
		return err
	}
	indexer, err := sess.newIndexer(nil)
	if err != nil {
		return err
	}
	reposMgr, err := repos.NewManager(cfg.Library.Root, cfg.Repos, logger)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(cfg, engine, indexer, reposMgr, logger)
	if err != nil {
		return err
	}

	return server.Serve(ctx, transport)
}
