package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lorekeep/lorekeep/internal/config"
)

// Scanner walks a library tree applying extension, directory, size, and
// gitignore filters.
type Scanner struct {
	root             string
	extensions       map[string]bool
	excludeDirs      map[string]bool
	respectGitignore bool
	maxFileSize      int64
	logger           *slog.Logger
}

// New creates a Scanner for the library described by cfg. The library root
// must be absolute, which config.Load guarantees.
func New(cfg config.LibraryConfig, logger *slog.Logger) (*Scanner, error) {
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

	extensions := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[strings.ToLower(ext)] = true
	}

	excludeDirs := make(map[string]bool, len(cfg.ExcludeDirs))
	for _, dir := range cfg.ExcludeDirs {
		excludeDirs[dir] = true
	}

	return &Scanner{
		root:             cfg.Root,
		extensions:       extensions,
		excludeDirs:      excludeDirs,
		respectGitignore: cfg.RespectGitignore,
		maxFileSize:      cfg.MaxFileSize,
		logger:           logger,
	}, nil
}

// Scan walks the tree and returns a snapshot of every matching document.
// Unreadable and oversized files are recorded as skipped, not fatal.
func (s *Scanner) Scan(ctx context.Context) (*Snapshot, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("library root not accessible: %w", err)
	}

	snap := &Snapshot{
		Root:      s.root,
		Files:     make(map[string]File),
		ScannedAt: time.Now(),
	}

	var ignores *ignoreStack
	if s.respectGitignore {
		ignores = newIgnoreStack(s.logger)
	}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// A vanished or unreadable entry should not kill the walk.
			s.logger.Debug("scan_entry_error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return fmt.Errorf("failed to resolve relative path for %s: %w", path, relErr)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				if ignores != nil {
					ignores.enter("", s.root)
				}
				return nil
			}
			if s.excludeDirs[d.Name()] {
				return fs.SkipDir
			}
			if ignores != nil {
				if ignores.ignored(rel, true) {
					return fs.SkipDir
				}
				ignores.enter(rel, path)
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if !s.extensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		if ignores != nil && ignores.ignored(rel, false) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			snap.Skipped = append(snap.Skipped, SkippedFile{Path: rel, Reason: SkipUnreadable, Err: infoErr})
			return nil
		}

		if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
			s.logger.Debug("scan_skip_large_file", "path", rel, "size", info.Size())
			snap.Skipped = append(snap.Skipped, SkippedFile{Path: rel, Reason: SkipTooLarge})
			return nil
		}

		fingerprint, fpErr := fingerprintFile(path)
		if fpErr != nil {
			s.logger.Debug("scan_skip_unreadable", "path", rel, "error", fpErr)
			snap.Skipped = append(snap.Skipped, SkippedFile{Path: rel, Reason: SkipUnreadable, Err: fpErr})
			return nil
		}

		snap.Files[rel] = File{
			Path:        rel,
			AbsPath:     path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Fingerprint: fingerprint,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("scan_complete",
		"root", s.root,
		"files", len(snap.Files),
		"skipped", len(snap.Skipped),
		"duration", time.Since(snap.ScannedAt).String())

	return snap, nil
}

// fingerprintFile computes the SHA-256 hex digest of a file's content.
func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint computes the content fingerprint for an in-memory document.
// It matches what fingerprintFile produces for the same bytes.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
