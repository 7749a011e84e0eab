package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteVectorIndex implements VectorIndex with an exact brute-force scan
// over float32 BLOB rows. Slower than HNSW per query but exact, durable on
// every write, and free of sidecar files; fine at personal-library scale.
type SQLiteVectorIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	dims   int
	closed bool
}

// Verify interface implementation at compile time
var _ VectorIndex = (*SQLiteVectorIndex)(nil)

// NewSQLiteVectorIndex opens the vector tables in the database at path,
// creating them if needed. An empty path opens an in-memory database for
// testing. Opening tables populated with a different dimensionality fails
// with ErrDimensionMismatch.
func NewSQLiteVectorIndex(path string, dims int) (*SQLiteVectorIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", dims)
	}

	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteVectorIndex{db: db, dims: dims}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return idx, nil
}

func (s *SQLiteVectorIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vectors (
		chunk_id  INTEGER PRIMARY KEY,
		embedding BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vector_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize vector schema: %w", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT value FROM vector_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO vector_meta (key, value) VALUES ('dimensions', ?)`,
			strconv.Itoa(s.dims))
		if err != nil {
			return fmt.Errorf("failed to record dimensions: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read dimensions: %w", err)
	default:
		storedDims, convErr := strconv.Atoi(stored)
		if convErr != nil {
			return fmt.Errorf("invalid dimensions value %q: %w", stored, convErr)
		}
		if storedDims != s.dims {
			return ErrDimensionMismatch{Expected: storedDims, Got: s.dims}
		}
	}

	return nil
}

// Upsert inserts or replaces the vector for a chunk id. Vectors are stored
// normalized so queries reduce to a dot product.
func (s *SQLiteVectorIndex) Upsert(ctx context.Context, id int64, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}
	if len(vec) != s.dims {
		return ErrDimensionMismatch{Expected: s.dims, Got: len(vec)}
	}

	v := make([]float32, len(vec))
	copy(v, vec)
	normalizeVectorInPlace(v)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vectors (chunk_id, embedding) VALUES (?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET embedding = excluded.embedding`,
		id, encodeVector(v))
	if err != nil {
		return fmt.Errorf("failed to upsert vector %d: %w", id, err)
	}

	return nil
}

// Delete removes a chunk's vector. Absent ids are a no-op.
func (s *SQLiteVectorIndex) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE chunk_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete vector %d: %w", id, err)
	}
	return nil
}

// Query scans every stored vector and returns the k nearest by cosine
// distance, ascending.
func (s *SQLiteVectorIndex) Query(ctx context.Context, vec []float32, k int) ([]VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if len(vec) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(vec)}
	}
	if k <= 0 {
		return []VectorMatch{}, nil
	}

	q := make([]float32, len(vec))
	copy(q, vec)
	normalizeVectorInPlace(q)

	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, embedding FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan vectors: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var (
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}

		v := decodeVector(blob)
		if len(v) != s.dims {
			return nil, fmt.Errorf("vector for chunk %d has %d dimensions, want %d", id, len(v), s.dims)
		}

		// Stored and query vectors are normalized: distance = 1 - dot.
		matches = append(matches, VectorMatch{
			ChunkID:  id,
			Distance: 1 - dotProduct(q, v),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vectors: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	if matches == nil {
		matches = []VectorMatch{}
	}

	return matches, nil
}

// DeleteAll removes every vector.
func (s *SQLiteVectorIndex) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors`); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// AllIDs returns the ids of all stored vectors, ascending.
func (s *SQLiteVectorIndex) AllIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector index is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id FROM vectors ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vector ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vector id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Count returns the number of stored vectors.
func (s *SQLiteVectorIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vectors`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// Dimensions returns the index dimensionality.
func (s *SQLiteVectorIndex) Dimensions() int {
	return s.dims
}

// Flush checkpoints the WAL; row writes are already durable.
func (s *SQLiteVectorIndex) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteVectorIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// encodeVector packs a float32 slice into little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func dotProduct(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// ReadSQLiteVectorDimensions reads the dimensionality persisted in the
// vector_meta table at path without creating any schema. Returns (0, nil)
// when the database or the vector tables do not exist yet.
func ReadSQLiteVectorDimensions(path string) (int, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	var stored string
	err = db.QueryRow(`SELECT value FROM vector_meta WHERE key = 'dimensions'`).Scan(&stored)
	if err != nil {
		// Missing table or row means the index was never populated.
		return 0, nil
	}

	dims, err := strconv.Atoi(stored)
	if err != nil {
		return 0, fmt.Errorf("corrupt vector dimensions %q: %w", stored, err)
	}
	return dims, nil
}
