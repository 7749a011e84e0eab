// Package repos syncs configured git repositories into the library tree.
// Each repo lands under <root>/<name>/ where the scanner picks its markdown
// up like any other directory.
package repos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/lorekeep/lorekeep/internal/config"
	lkerrors "github.com/lorekeep/lorekeep/internal/errors"
)

// PullResult reports the outcome of syncing one repository.
type PullResult struct {
	// Name is the configured repository name.
	Name string

	// Path is the checkout directory under the library root.
	Path string

	// Updated is true when the checkout changed: a fresh clone or a pull
	// that fast-forwarded. An already up-to-date pull leaves it false.
	Updated bool

	// Err is the per-repo failure, nil on success. One failing repo never
	// stops the others.
	Err error

	// Duration is how long the sync took.
	Duration time.Duration
}

// Manager clones and pulls the repositories listed in the config.
type Manager struct {
	root   string
	repos  []config.RepoConfig
	logger *slog.Logger
}

// NewManager creates a Manager syncing into the library rooted at root.
func NewManager(root string, repos []config.RepoConfig, logger *slog.Logger) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("library root is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: root, repos: repos, logger: logger}, nil
}

// Count returns the number of configured repositories.
func (m *Manager) Count() int {
	return len(m.repos)
}

// PullAll syncs every configured repository sequentially and returns one
// result per repo in config order. Only context cancellation aborts early.
func (m *Manager) PullAll(ctx context.Context) ([]PullResult, error) {
	results := make([]PullResult, 0, len(m.repos))

	for _, rc := range m.repos {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		start := time.Now()
		path := filepath.Join(m.root, rc.Name)

		updated, err := m.sync(ctx, rc, path)
		res := PullResult{
			Name:     rc.Name,
			Path:     path,
			Updated:  updated,
			Duration: time.Since(start),
		}
		if err != nil {
			res.Err = lkerrors.New(lkerrors.ErrCodeRepoPullFailed,
				fmt.Sprintf("failed to sync repo %s: %v", rc.Name, err), err).
				WithDetail("url", rc.URL)
			m.logger.Warn("repo_sync_failed", "repo", rc.Name, "error", err)
		} else {
			m.logger.Info("repo_synced", "repo", rc.Name, "updated", updated,
				"duration", res.Duration.String())
		}

		results = append(results, res)
	}

	return results, nil
}

// sync clones the repo when its checkout is missing, pulls otherwise.
// It reports whether the checkout changed.
func (m *Manager) sync(ctx context.Context, rc config.RepoConfig, path string) (bool, error) {
	if _, err := os.Stat(filepath.Join(path, ".git")); os.IsNotExist(err) {
		return true, m.clone(ctx, rc, path)
	}
	return m.pull(ctx, rc, path)
}

func (m *Manager) clone(ctx context.Context, rc config.RepoConfig, path string) error {
	opts := &git.CloneOptions{URL: rc.URL}
	if rc.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(rc.Branch)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, path, false, opts); err != nil {
		return fmt.Errorf("failed to clone %s: %w", rc.URL, err)
	}
	return nil
}

func (m *Manager) pull(ctx context.Context, rc config.RepoConfig, path string) (bool, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return false, fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	opts := &git.PullOptions{RemoteName: "origin"}
	if rc.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(rc.Branch)
		opts.SingleBranch = true
	}

	err = worktree.PullContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to pull: %w", err)
	}
	return true, nil
}

// Head returns the short hash of a checkout's HEAD commit, or an empty
// string when the checkout is missing or unreadable.
func (m *Manager) Head(name string) string {
	repo, err := git.PlainOpen(filepath.Join(m.root, name))
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()[:8]
}
