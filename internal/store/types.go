// Package store provides the persistence layer for all indexed data:
// document metadata in SQLite and chunk vectors in a pluggable vector index
// (HNSW graph or SQLite brute-force scan).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by the document store. ErrNotFound is a response
// condition for lookups, not a failure to log.
var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
)

// Document is a markdown file tracked by the library, including its full text.
type Document struct {
	ID      int64
	Path    string // relative to the library root, slash-separated
	Title   string
	Content string
	// Fingerprint is the SHA-256 hex of the raw file bytes. An unchanged
	// fingerprint is never re-chunked or re-embedded.
	Fingerprint string
	Size        int64 // file size in bytes
	ModifiedAt  time.Time
	IndexedAt   time.Time
}

// DocumentInfo is a Document without its content, the unit of change
// detection when diffing a scan snapshot against the store.
type DocumentInfo struct {
	ID          int64
	Path        string
	Fingerprint string
	Size        int64
	ModifiedAt  time.Time
	IndexedAt   time.Time
}

// Chunk is a retrievable slice of a document, the unit of embedding.
type Chunk struct {
	ID         int64
	DocumentID int64
	Ordinal    int    // 0-based position within the document
	Content    string // chunk text
	StartChar  int    // character offsets into the document, half-open
	EndChar    int
}

// Image is an image reference extracted from a document. Purely descriptive;
// never drives indexing decisions.
type Image struct {
	ID         int64
	DocumentID int64
	// ChunkID is the chunk containing the reference, 0 when unscoped.
	ChunkID int64
	// ChunkOrdinal scopes the image to a chunk on write, before chunk ids
	// exist: the ordinal of the containing chunk, or -1 when the reference
	// falls outside every chunk. Ignored on reads.
	ChunkOrdinal int
	SourcePath   string // as authored in the markdown
	ResolvedPath string // absolute local path, empty for remote URLs
	AltText      string
}

// Stats summarizes the store contents.
type Stats struct {
	Documents   int
	Chunks      int
	Images      int
	LastIndexed time.Time // zero when nothing has been indexed
}

// VectorMatch is one nearest-neighbor hit from a vector index query.
type VectorMatch struct {
	ChunkID  int64
	Distance float32 // cosine distance, lower is more similar
}

// VectorIndex stores chunk embeddings keyed by chunk id and answers
// nearest-neighbor queries. Implementations are interchangeable; nothing
// outside NewVectorIndex selects by backend identity. Dimensionality is fixed
// at creation and every vector of any other length is rejected with
// ErrDimensionMismatch.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for a chunk id.
	Upsert(ctx context.Context, id int64, vec []float32) error

	// Delete removes a chunk's vector. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id int64) error

	// Query returns up to k nearest matches ordered by ascending distance.
	Query(ctx context.Context, vec []float32, k int) ([]VectorMatch, error)

	// DeleteAll removes every vector.
	DeleteAll(ctx context.Context) error

	// AllIDs returns the ids of all stored vectors, ascending. Used for
	// consistency checking against the document store.
	AllIDs(ctx context.Context) ([]int64, error)

	// Count returns the number of stored vectors.
	Count() int

	// Dimensions returns the index dimensionality.
	Dimensions() int

	// Flush persists pending state to disk.
	Flush(ctx context.Context) error

	Close() error
}

// ErrDimensionMismatch indicates a vector whose length does not match the
// index dimensionality, or an existing index persisted with a different
// dimensionality than the configured embedder produces.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'lorekeep rebuild')", e.Expected, e.Got)
}
