package chunk

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Regex patterns for markdown scanning
var (
	// Matches the first H1 heading: # Title
	titlePattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

	// Matches inline images: ![alt](path) and ![alt](path "title")
	inlineImagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

	// Matches reference-style image usages: ![alt][label] and ![label][]
	refImagePattern = regexp.MustCompile(`!\[([^\]]*)\]\[([^\]]*)\]`)

	// Matches reference definitions: [label]: path "optional title"
	refDefPattern = regexp.MustCompile(`(?m)^ {0,3}\[([^\]]+)\]:\s+(\S+)`)
)

// ExtractTitle returns the document title: the first H1 heading, falling back
// to the first non-empty line (truncated to 100 characters), then "Untitled".
func ExtractTitle(content string) string {
	if match := titlePattern.FindStringSubmatch(content); match != nil {
		return strings.TrimSpace(match[1])
	}

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped != "" {
			if runes := []rune(stripped); len(runes) > 100 {
				return string(runes[:100])
			}
			return stripped
		}
	}

	return "Untitled"
}

// ExtractImages scans markdown text for inline and reference-style image
// references and returns one entry per match, in document order.
//
// Local paths resolve relative to the markdown file's directory. When
// libraryRoot is non-empty, resolved paths escaping it are dropped (path
// traversal like ../../etc/passwd). Remote URLs and data URIs are recorded
// as authored with an empty resolved path.
func ExtractImages(content, docPath, libraryRoot string) []ImageRef {
	defs := referenceDefinitions(content)

	var images []ImageRef

	for _, m := range inlineImagePattern.FindAllStringSubmatchIndex(content, -1) {
		alt := content[m[2]:m[3]]
		src := content[m[4]:m[5]]
		if ref, ok := makeImageRef(alt, src, runeOffset(content, m[0]), docPath, libraryRoot); ok {
			images = append(images, ref)
		}
	}

	for _, m := range refImagePattern.FindAllStringSubmatchIndex(content, -1) {
		alt := content[m[2]:m[3]]
		label := content[m[4]:m[5]]
		if label == "" {
			// Collapsed reference: ![label][]
			label = alt
		}
		src, ok := defs[strings.ToLower(label)]
		if !ok {
			continue // usage without a definition
		}
		if ref, ok := makeImageRef(alt, src, runeOffset(content, m[0]), docPath, libraryRoot); ok {
			images = append(images, ref)
		}
	}

	// Inline and reference matches were collected separately; restore
	// document order.
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].CharOffset < images[j].CharOffset
	})

	return images
}

// referenceDefinitions collects [label]: path definitions, keyed by
// lowercased label (reference labels are case-insensitive).
func referenceDefinitions(content string) map[string]string {
	defs := make(map[string]string)
	for _, m := range refDefPattern.FindAllStringSubmatch(content, -1) {
		label := strings.ToLower(m[1])
		if _, exists := defs[label]; !exists {
			defs[label] = m[2]
		}
	}
	return defs
}

// makeImageRef builds an ImageRef for one match, resolving and sandboxing
// local paths. Returns ok=false when the reference must be dropped.
func makeImageRef(alt, src string, offset int, docPath, libraryRoot string) (ImageRef, bool) {
	ref := ImageRef{
		SourcePath: src,
		AltText:    alt,
		CharOffset: offset,
	}

	if isRemoteSource(src) {
		return ref, true
	}

	resolved := filepath.Clean(filepath.Join(filepath.Dir(docPath), src))
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}

	if libraryRoot != "" && !isWithinRoot(libraryRoot, resolved) {
		slog.Warn("image_outside_library_root",
			slog.String("doc", docPath),
			slog.String("image", src),
			slog.String("resolved", resolved))
		return ImageRef{}, false
	}

	ref.ResolvedPath = resolved
	return ref, true
}

func isRemoteSource(src string) bool {
	return strings.HasPrefix(src, "http://") ||
		strings.HasPrefix(src, "https://") ||
		strings.HasPrefix(src, "data:")
}

// isWithinRoot reports whether path is root or inside it.
func isWithinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// runeOffset converts a byte offset into a character offset.
func runeOffset(s string, byteOff int) int {
	return utf8.RuneCountInString(s[:byteOff])
}
