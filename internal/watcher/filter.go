package watcher

import (
	"path"
	"strings"

	"github.com/lorekeep/lorekeep/internal/config"
)

// filter mirrors the scanner's extension and directory rules so the watcher
// only wakes the indexer for changes an update could act on. Gitignore
// matching stays in the scanner: an update re-scans with the full rule
// stack, so at worst an ignored document costs one no-op update cycle.
type filter struct {
	extensions  map[string]bool
	excludeDirs map[string]bool
}

func newFilter(cfg config.LibraryConfig) *filter {
	f := &filter{
		extensions: make(map[string]bool, len(cfg.Extensions)),
		// The data directory is always excluded: index writes must
		// never feed back into watch events.
		excludeDirs: map[string]bool{".git": true, config.DataDirName: true},
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[strings.ToLower(ext)] = true
	}
	for _, dir := range cfg.ExcludeDirs {
		f.excludeDirs[dir] = true
	}
	return f
}

// skipDir reports whether a directory basename is excluded from watching.
func (f *filter) skipDir(name string) bool {
	return f.excludeDirs[name]
}

// skipPath reports whether any segment of a slash-relative path is excluded.
func (f *filter) skipPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if f.excludeDirs[seg] {
			return true
		}
	}
	return false
}

// wantsFile reports whether a slash-relative file path has a watched
// extension.
func (f *filter) wantsFile(rel string) bool {
	return f.extensions[strings.ToLower(path.Ext(rel))]
}
