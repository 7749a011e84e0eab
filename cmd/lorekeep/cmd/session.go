package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/embed"
	"github.com/lorekeep/lorekeep/internal/index"
	"github.com/lorekeep/lorekeep/internal/logging"
	"github.com/lorekeep/lorekeep/internal/search"
	"github.com/lorekeep/lorekeep/internal/store"
)

// libraryRoot resolves the library root directory. An explicit path argument
// wins; otherwise walk up from the working directory looking for a config
// file or data directory.
func libraryRoot(arg string) (string, error) {
	if arg != "" {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("library path does not exist: %s", abs)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("library path is not a directory: %s", abs)
		}
		return abs, nil
	}
	return config.FindLibraryRoot(".")
}

// loadLibrary resolves the root and loads its configuration.
func loadLibrary(arg string) (*config.Config, error) {
	root, err := libraryRoot(arg)
	if err != nil {
		return nil, err
	}
	return config.Load(root)
}

// setupLogging configures file logging under the library data directory and
// installs the logger as the slog default. Logging failures never block a
// command; the caller gets the default logger and a no-op cleanup instead.
func setupLogging(cfg *config.Config) (*slog.Logger, func()) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.FilePath = cfg.LogFilePath()

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return slog.Default(), func() {}
	}
	slog.SetDefault(logger)
	return logger, cleanup
}

// requireIndex errors when the library has never been indexed. Commands
// that only read must not create the database as a side effect of opening.
func requireIndex(cfg *config.Config) error {
	if _, err := os.Stat(cfg.DatabasePath()); os.IsNotExist(err) {
		return fmt.Errorf("no index found in %s\nRun 'lorekeep rebuild' to create one", cfg.Library.Root)
	}
	return nil
}

// session bundles the backends a command operates on: the document store,
// the embedder, and a vector index sized to the embedder's dimensions.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	vectors  store.VectorIndex
	embedder embed.Embedder
}

// openSession opens the backends in dependency order. When rebuild is true
// a persisted vector index with mismatched dimensions is removed and
// recreated instead of failing, since a rebuild replaces every vector.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, rebuild bool) (*session, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	embedder, err := embed.New(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	vectors, err := store.NewVectorIndex(cfg.Vector.Backend, cfg.DataDir(), embedder.Dimensions())
	if err != nil {
		var dimErr store.ErrDimensionMismatch
		if errors.As(err, &dimErr) && rebuild {
			logger.Warn("recreating vector index with new dimensions",
				"old", dimErr.Expected, "new", dimErr.Got)
			if rmErr := store.RemoveVectorIndex(cfg.DataDir(), cfg.Vector.Backend); rmErr == nil {
				vectors, err = store.NewVectorIndex(cfg.Vector.Backend, cfg.DataDir(), embedder.Dimensions())
			}
		}
		if err != nil {
			_ = embedder.Close()
			_ = st.Close()
			if errors.As(err, &dimErr) {
				return nil, fmt.Errorf("vector index was built with %d dimensions but embedder %s produces %d\nRun 'lorekeep rebuild' to reindex",
					dimErr.Expected, embedder.ModelName(), dimErr.Got)
			}
			return nil, fmt.Errorf("failed to open vector index: %w", err)
		}
	}

	return &session{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		vectors:  vectors,
		embedder: embedder,
	}, nil
}

// Close releases the backends in reverse order of construction.
func (s *session) Close() {
	_ = s.vectors.Close()
	_ = s.embedder.Close()
	_ = s.store.Close()
}

func (s *session) newEngine() (*search.Engine, error) {
	return search.New(s.cfg, s.store, s.vectors, s.embedder, search.WithLogger(s.logger))
}

func (s *session) newIndexer(progress index.ProgressFunc) (*index.Indexer, error) {
	return index.New(index.Dependencies{
		Config:   s.cfg,
		Store:    s.store,
		Vectors:  s.vectors,
		Embedder: s.embedder,
		Logger:   s.logger,
		Progress: progress,
	})
}
