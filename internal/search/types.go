// Package search answers semantic queries against the indexed library: it
// embeds the query, asks the vector index for the nearest chunks, and
// hydrates matches from the document store.
package search

import "time"

// Hit is one search result: a chunk, its distance to the query, and the
// document it belongs to.
type Hit struct {
	// ChunkID identifies the matched chunk and can be passed to FetchByHit.
	ChunkID int64

	// Distance is the cosine distance between query and chunk, lower is
	// more similar.
	Distance float32

	// Content is the chunk text.
	Content string

	// Ordinal is the chunk's 0-based position within its document.
	Ordinal int

	// DocumentPath and DocumentTitle identify the owning document.
	DocumentPath  string
	DocumentTitle string
}

// Options tunes a single search call.
type Options struct {
	// Limit is the maximum number of hits. Zero uses the configured
	// default; values above MaxLimit are capped.
	Limit int

	// DistanceThreshold drops hits whose distance exceeds it. Zero uses
	// the configured default; negative disables filtering.
	DistanceThreshold float64
}

// Status reports the engine's view of the indexed library.
type Status struct {
	Documents   int
	Chunks      int
	Images      int
	LastIndexed time.Time

	VectorBackend    string
	VectorCount      int
	VectorDimensions int

	EmbedderModel     string
	EmbedderAvailable bool

	// Healthy is true when the store passes its integrity check and the
	// chunk and vector counts agree. Embedder reachability is reported
	// separately; an offline backend doesn't corrupt anything.
	Healthy bool

	// Problems lists what made Healthy false.
	Problems []string
}
