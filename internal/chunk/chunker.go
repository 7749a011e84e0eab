// Package chunk splits markdown documents into overlapping fixed-size chunks
// and extracts titles and image references from their text. Offsets are in
// characters (runes), not bytes, so multi-byte text chunks predictably.
package chunk

import (
	"fmt"
)

// Boundary separators, in preference order. A window is shortened to end just
// after the last separator found in its second half.
var (
	paragraphSep = []rune("\n\n")
	sentenceSeps = [][]rune{
		[]rune(". "),
		[]rune(".\n"),
		[]rune("! "),
		[]rune("? "),
	}
)

// Chunker splits text into overlapping chunks of at most Size characters,
// with consecutive chunks sharing Overlap characters.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker creates a Chunker, rejecting degenerate configurations.
// Overlap must be strictly smaller than size or the window could never
// advance.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be smaller than chunk size, got overlap=%d size=%d", overlap, size)
	}
	return &Chunker{Size: size, Overlap: overlap}, nil
}

// Split splits text into ordered pieces covering [0, len) with no gaps.
// Consecutive pieces overlap by exactly c.Overlap characters unless a piece
// was shortened to end at a paragraph or sentence boundary. An empty text
// yields no pieces; text no longer than c.Size yields exactly one.
func (c *Chunker) Split(text string) []Piece {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.Size {
		return []Piece{{Ordinal: 0, Content: text, StartChar: 0, EndChar: n}}
	}

	var pieces []Piece
	start := 0
	for start < n {
		end := start + c.Size
		if end > n {
			end = n
		}

		// Prefer a paragraph break, then a sentence break, but only in the
		// second half of the window so chunks never shrink below half size.
		if end < n {
			if pos := lastIndexWithin(runes, paragraphSep, start, end); pos > start+c.Size/2 {
				end = pos + len(paragraphSep)
			} else {
				for _, sep := range sentenceSeps {
					if pos := lastIndexWithin(runes, sep, start, end); pos > start+c.Size/2 {
						end = pos + len(sep)
						break
					}
				}
			}
		}

		pieces = append(pieces, Piece{
			Ordinal:   len(pieces),
			Content:   string(runes[start:end]),
			StartChar: start,
			EndChar:   end,
		})
		if end >= n {
			break
		}

		// Advance with overlap, guarding against boundary-shortened windows
		// too short to move the cursor forward.
		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next

		// Fold a remainder shorter than the overlap into the last piece
		// instead of emitting a tiny trailing fragment.
		if n-start < c.Overlap {
			last := &pieces[len(pieces)-1]
			last.Content = string(runes[last.StartChar:])
			last.EndChar = n
			break
		}
	}

	return pieces
}

// lastIndexWithin returns the largest i in [start, end-len(sep)] where sep
// occurs in runes at i, or -1 if there is none.
func lastIndexWithin(runes []rune, sep []rune, start, end int) int {
	for i := end - len(sep); i >= start; i-- {
		if runesMatchAt(runes, sep, i) {
			return i
		}
	}
	return -1
}

func runesMatchAt(runes, sep []rune, i int) bool {
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
