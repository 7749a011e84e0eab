package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// poller detects changes by rescanning the tree on an interval and diffing
// modification times and sizes. It only tracks documents the filter wants,
// so a deleted directory surfaces as deletes for the documents it held.
type poller struct {
	root     string
	interval time.Duration
	filter   *filter
	known    map[string]pollState
}

type pollState struct {
	modTime time.Time
	size    int64
}

func newPoller(root string, interval time.Duration, f *filter) *poller {
	return &poller{
		root:     root,
		interval: interval,
		filter:   f,
		known:    make(map[string]pollState),
	}
}

// run polls until the context is cancelled or stopCh closes. The first scan
// establishes a baseline without emitting events.
func (p *poller) run(ctx context.Context, stopCh <-chan struct{}, emit func(Event), fail func(error)) error {
	baseline, err := p.scan()
	if err != nil {
		return fmt.Errorf("initial poll scan failed: %w", err)
	}
	p.known = baseline

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stopCh:
			return nil
		case <-ticker.C:
			if err := p.diff(emit); err != nil {
				fail(err)
			}
		}
	}
}

// diff rescans and emits an event per changed document.
func (p *poller) diff(emit func(Event)) error {
	current, err := p.scan()
	if err != nil {
		return err
	}
	now := time.Now()

	for rel, state := range current {
		prev, seen := p.known[rel]
		switch {
		case !seen:
			emit(Event{Path: rel, Op: OpCreate, At: now})
		case !prev.modTime.Equal(state.modTime) || prev.size != state.size:
			emit(Event{Path: rel, Op: OpModify, At: now})
		}
	}
	for rel := range p.known {
		if _, alive := current[rel]; !alive {
			emit(Event{Path: rel, Op: OpDelete, At: now})
		}
	}

	p.known = current
	return nil
}

func (p *poller) scan() (map[string]pollState, error) {
	seen := make(map[string]pollState)

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && p.filter.skipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !p.filter.wantsFile(rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		seen[rel] = pollState{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}
