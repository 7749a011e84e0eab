package chunk

// Chunking defaults, in characters.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Piece is one chunk of a document's text, the unit of embedding and retrieval.
type Piece struct {
	// Ordinal is the 0-based position of the piece within its document.
	Ordinal int
	// Content is the piece's text.
	Content string
	// StartChar and EndChar are character (rune) offsets into the document,
	// half-open [StartChar, EndChar).
	StartChar int
	EndChar   int
}

// Len returns the piece length in characters.
func (p Piece) Len() int {
	return p.EndChar - p.StartChar
}

// ImageRef is an image reference found in a document. Image references are
// purely descriptive; they never drive indexing decisions.
type ImageRef struct {
	// SourcePath is the path or URL exactly as authored.
	SourcePath string
	// ResolvedPath is the absolute on-disk path for local images. Empty for
	// remote URLs and data URIs.
	ResolvedPath string
	// AltText is the image's alt text as authored.
	AltText string
	// CharOffset is the character offset of the reference in the document
	// text, used to scope the image to the chunk containing it.
	CharOffset int
}

// IsRemote reports whether the reference points at a URL rather than a file.
func (r ImageRef) IsRemote() bool {
	return r.ResolvedPath == ""
}
