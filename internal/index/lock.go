package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrIndexBusy is returned when another indexing run already holds the
// library's index lock.
var ErrIndexBusy = errors.New("another indexing run is in progress")

// activeLocks tracks lock paths held by this process. flock semantics for
// two handles on the same file within one process differ across platforms,
// so same-process contention is tracked explicitly.
var activeLocks = struct {
	sync.Mutex
	paths map[string]bool
}{paths: make(map[string]bool)}

// Lock is the single-writer guard for a library's index. It combines a
// cross-process flock with an in-process registry so that concurrent runs
// inside one process are rejected the same way as runs in other processes.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewLock creates a lock for the given lock file path.
func NewLock(path string) *Lock {
	return &Lock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire takes the lock without blocking. It returns ErrIndexBusy when the
// lock is held by this or any other process.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	activeLocks.Lock()
	if activeLocks.paths[l.path] {
		activeLocks.Unlock()
		return ErrIndexBusy
	}
	activeLocks.paths[l.path] = true
	activeLocks.Unlock()

	acquired, err := l.flock.TryLock()
	if err != nil {
		l.releaseLocal()
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !acquired {
		l.releaseLocal()
		return ErrIndexBusy
	}

	l.locked = true
	return nil
}

// Release drops the lock. Safe to call multiple times or on a Lock that was
// never acquired.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false

	err := l.flock.Unlock()
	l.releaseLocal()
	if err != nil {
		return fmt.Errorf("failed to release index lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

func (l *Lock) releaseLocal() {
	activeLocks.Lock()
	delete(activeLocks.paths, l.path)
	activeLocks.Unlock()
}
