package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/index"
	"github.com/lorekeep/lorekeep/internal/repos"
	"github.com/lorekeep/lorekeep/internal/search"
	"github.com/lorekeep/lorekeep/pkg/version"
)

// Server bridges MCP clients with the search engine and indexer over stdio.
type Server struct {
	mcp     *mcp.Server
	engine  *search.Engine
	indexer *index.Indexer
	repos   *repos.Manager
	cfg     *config.Config
	logger  *slog.Logger
}

// NewServer creates the MCP server and registers its tools. The repo
// manager may be nil when no git sources are configured; repos_pull_all
// then returns an empty result.
func NewServer(cfg *config.Config, engine *search.Engine, indexer *index.Indexer, reposMgr *repos.Manager, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:  engine,
		indexer: indexer,
		repos:   reposMgr,
		cfg:     cfg,
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "lorekeep",
			Version: version.Short(),
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// Serve runs the server over the given transport until the context is
// cancelled. Only stdio is supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio":
		s.logger.Info("mcp_server_started",
			"transport", transport,
			"library", s.cfg.Library.Root,
		)
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", "error", err)
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport %q (supported: stdio)", transport)
	}
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "lorekeep", version.Short()
}
