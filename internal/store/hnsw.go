package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW graph parameters.
const (
	hnswM        = 16
	hnswEfSearch = 20
	hnswMl       = 0.25
)

// HNSWIndex implements VectorIndex with a coder/hnsw graph held in memory and
// persisted to disk on Flush. Chunk ids map to internal graph keys so deleted
// vectors can be orphaned in place; deleting graph nodes directly can corrupt
// small graphs.
type HNSWIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	path  string // empty for in-memory indexes
	dims  int

	idMap   map[int64]uint64 // chunk id -> internal key
	keyMap  map[uint64]int64 // internal key -> chunk id
	nextKey uint64

	closed bool
}

// hnswMeta persists the id mappings and dimensionality alongside the graph.
type hnswMeta struct {
	IDMap      map[int64]uint64
	NextKey    uint64
	Dimensions int
}

// Verify interface implementation at compile time
var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex opens the vector index persisted at path, creating an empty
// one when no files exist yet. An empty path keeps the index purely in
// memory. Opening an index persisted with a different dimensionality fails
// with ErrDimensionMismatch; vectors are never truncated or padded.
func NewHNSWIndex(path string, dims int) (*HNSWIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", dims)
	}

	idx := &HNSWIndex{
		graph:  newHNSWGraph(),
		path:   path,
		dims:   dims,
		idMap:  make(map[int64]uint64),
		keyMap: make(map[uint64]int64),
	}

	if path == "" {
		return idx, nil
	}

	metaPath := path + ".meta"
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		return idx, nil
	}

	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func newHNSWGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = hnswM
	g.EfSearch = hnswEfSearch
	g.Ml = hnswMl
	return g
}

// Upsert inserts or replaces the vector for a chunk id.
func (s *HNSWIndex) Upsert(ctx context.Context, id int64, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}
	if len(vec) != s.dims {
		return ErrDimensionMismatch{Expected: s.dims, Got: len(vec)}
	}

	// Replacing an id orphans its old graph node instead of deleting it.
	if oldKey, exists := s.idMap[id]; exists {
		delete(s.keyMap, oldKey)
		delete(s.idMap, id)
	}

	key := s.nextKey
	s.nextKey++

	v := make([]float32, len(vec))
	copy(v, vec)
	normalizeVectorInPlace(v)

	s.graph.Add(hnsw.MakeNode(key, v))
	s.idMap[id] = key
	s.keyMap[key] = id

	return nil
}

// Delete removes a chunk's vector. Absent ids are a no-op.
func (s *HNSWIndex) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	if key, exists := s.idMap[id]; exists {
		delete(s.keyMap, key)
		delete(s.idMap, id)
	}
	return nil
}

// Query returns up to k nearest matches ordered by ascending cosine distance.
func (s *HNSWIndex) Query(ctx context.Context, vec []float32, k int) ([]VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if len(vec) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(vec)}
	}
	if k <= 0 || len(s.idMap) == 0 {
		return []VectorMatch{}, nil
	}

	q := make([]float32, len(vec))
	copy(q, vec)
	normalizeVectorInPlace(q)

	// Over-fetch to cover orphaned nodes left behind by replacements and
	// deletes, then keep the k nearest live ones.
	searchK := k + (s.graph.Len() - len(s.idMap))
	nodes := s.graph.Search(q, searchK)

	matches := make([]VectorMatch, 0, min(k, len(nodes)))
	for _, node := range nodes {
		id, live := s.keyMap[node.Key]
		if !live {
			continue
		}
		matches = append(matches, VectorMatch{
			ChunkID:  id,
			Distance: s.graph.Distance(q, node.Value),
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

// DeleteAll removes every vector and resets the graph.
func (s *HNSWIndex) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	s.graph = newHNSWGraph()
	s.idMap = make(map[int64]uint64)
	s.keyMap = make(map[uint64]int64)
	s.nextKey = 0

	return nil
}

// AllIDs returns the ids of all live vectors, ascending.
func (s *HNSWIndex) AllIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector index is closed")
	}

	ids := make([]int64, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// Count returns the number of live vectors.
func (s *HNSWIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Dimensions returns the index dimensionality.
func (s *HNSWIndex) Dimensions() int {
	return s.dims
}

// Flush writes the graph and its metadata to disk atomically (temp file +
// rename). In-memory indexes flush to nowhere.
func (s *HNSWIndex) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := s.saveMeta(s.path + ".meta"); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

func (s *HNSWIndex) saveMeta(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMeta{
		IDMap:      s.idMap,
		NextKey:    s.nextKey,
		Dimensions: s.dims,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// load restores the id mappings and graph from disk, checking that the
// persisted dimensionality matches the configured one.
func (s *HNSWIndex) load() error {
	meta, err := readHNSWMeta(s.path + ".meta")
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}
	if meta.Dimensions != s.dims {
		return ErrDimensionMismatch{Expected: meta.Dimensions, Got: s.dims}
	}

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	s.idMap = meta.IDMap
	s.nextKey = meta.NextKey
	s.keyMap = make(map[uint64]int64, len(meta.IDMap))
	for id, key := range meta.IDMap {
		s.keyMap[key] = id
	}

	return nil
}

// Close releases the graph. Callers flush before closing; Close itself does
// not persist.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil

	return nil
}

// ReadHNSWDimensions reads the dimensionality of the index persisted at
// vectorPath. Returns 0 when no index exists yet.
func ReadHNSWDimensions(vectorPath string) (int, error) {
	meta, err := readHNSWMeta(vectorPath + ".meta")
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return meta.Dimensions, nil
}

func readHNSWMeta(path string) (*hnswMeta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var meta hnswMeta
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode hnsw metadata: %w", err)
	}
	return &meta, nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
