package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// ignoreStack tracks .gitignore files discovered while descending the tree.
// Each matcher applies to paths under its own directory, expressed relative
// to that directory, which is how git scopes nested ignore files.
type ignoreStack struct {
	matchers []scopedMatcher
	logger   *slog.Logger
}

type scopedMatcher struct {
	// dir is the matcher's directory relative to the library root,
	// slash-separated, empty for the root itself.
	dir     string
	matcher *gitignore.GitIgnore
}

func newIgnoreStack(logger *slog.Logger) *ignoreStack {
	return &ignoreStack{logger: logger}
}

// enter records the .gitignore of a directory the walk just descended into.
// relDir is slash-separated and relative to the root; absDir is the same
// directory on disk.
func (s *ignoreStack) enter(relDir, absDir string) {
	// WalkDir finishes a directory's subtree before visiting siblings, so
	// matchers from departed subtrees can be dropped by prefix.
	s.matchers = trimToScope(s.matchers, relDir)

	path := filepath.Join(absDir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return
	}

	matcher, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		s.logger.Debug("gitignore_parse_failed", "path", path, "error", err)
		return
	}

	s.matchers = append(s.matchers, scopedMatcher{dir: relDir, matcher: matcher})
}

// ignored reports whether rel (slash-separated, relative to the root) is
// excluded by any in-scope matcher. Directories are also tested with a
// trailing slash so "build/" patterns apply.
func (s *ignoreStack) ignored(rel string, isDir bool) bool {
	for _, m := range s.matchers {
		scoped, ok := relativeTo(rel, m.dir)
		if !ok {
			continue
		}
		if m.matcher.MatchesPath(scoped) {
			return true
		}
		if isDir && m.matcher.MatchesPath(scoped+"/") {
			return true
		}
	}
	return false
}

// trimToScope drops matchers whose directory does not contain relDir.
func trimToScope(matchers []scopedMatcher, relDir string) []scopedMatcher {
	kept := matchers[:0]
	for _, m := range matchers {
		if _, ok := relativeTo(relDir, m.dir); ok {
			kept = append(kept, m)
		}
	}
	return kept
}

// relativeTo rewrites rel against base, both slash-separated root-relative
// paths. It returns false when rel is outside base.
func relativeTo(rel, base string) (string, bool) {
	if base == "" {
		return rel, true
	}
	if rel == base {
		return ".", true
	}
	if strings.HasPrefix(rel, base+"/") {
		return rel[len(base)+1:], true
	}
	return "", false
}
