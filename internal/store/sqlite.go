package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"
)

// Store persists documents, chunks, and image references in SQLite.
// A single connection with WAL journaling serializes writers while keeping
// the database readable across processes.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens (creating if needed) the library database at path.
// An empty path opens an in-memory database for testing.
func Open(path string) (*Store, error) {
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

	// Single writer to prevent lock contention; per-document transactions
	// are short so readers queue briefly instead of failing.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; DSN params
	// may be ignored. foreign_keys drives the chunk/image cascades.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the document, chunk, and image tables.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		path         TEXT    NOT NULL UNIQUE,
		title        TEXT    NOT NULL DEFAULT '',
		content      TEXT    NOT NULL,
		content_hash TEXT    NOT NULL,
		size_bytes   INTEGER NOT NULL,
		modified_at  TIMESTAMP,
		indexed_at   TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		ordinal     INTEGER NOT NULL,
		content     TEXT    NOT NULL,
		start_char  INTEGER NOT NULL,
		end_char    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS images (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id   INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_id      INTEGER REFERENCES chunks(id) ON DELETE SET NULL,
		source_path   TEXT NOT NULL,
		resolved_path TEXT NOT NULL DEFAULT '',
		alt_text      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_images_document ON images(document_id);
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the subset of *sql.DB and *sql.Tx the write helpers run on.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// UpsertDocument inserts the document or, when the path already exists,
// replaces its stored fields. The document's ID is set and returned.
func (s *Store) UpsertDocument(ctx context.Context, d *Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	return upsertDocument(ctx, s.db, d)
}

func upsertDocument(ctx context.Context, q dbtx, d *Document) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO documents (path, title, content, content_hash, size_bytes, modified_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title        = excluded.title,
			content      = excluded.content,
			content_hash = excluded.content_hash,
			size_bytes   = excluded.size_bytes,
			modified_at  = excluded.modified_at,
			indexed_at   = excluded.indexed_at
		RETURNING id`,
		d.Path, d.Title, d.Content, d.Fingerprint, d.Size,
		unixOrZero(d.ModifiedAt), unixOrZero(d.IndexedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert document %s: %w", d.Path, err)
	}

	d.ID = id
	return id, nil
}

// InsertDocument inserts a new document, failing with ErrConstraintViolation
// when the path is already present.
func (s *Store) InsertDocument(ctx context.Context, d *Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (path, title, content, content_hash, size_bytes, modified_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		d.Path, d.Title, d.Content, d.Fingerprint, d.Size,
		unixOrZero(d.ModifiedAt), unixOrZero(d.IndexedAt),
	).Scan(&id)
	if err != nil {
		if isConstraintErr(err) {
			return 0, fmt.Errorf("document %s: %w", d.Path, ErrConstraintViolation)
		}
		return 0, fmt.Errorf("failed to insert document %s: %w", d.Path, err)
	}

	d.ID = id
	return id, nil
}

// ListDocuments returns a content-free snapshot of every tracked document,
// ordered by path. This is the input to incremental change detection.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, content_hash, size_bytes, modified_at, indexed_at
		FROM documents
		ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var (
			info              DocumentInfo
			modified, indexed int64
		)
		if err := rows.Scan(&info.ID, &info.Path, &info.Fingerprint, &info.Size, &modified, &indexed); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		info.ModifiedAt = timeOrZero(modified)
		info.IndexedAt = timeOrZero(indexed)
		docs = append(docs, info)
	}

	return docs, rows.Err()
}

// GetDocumentByPath returns the full document stored at path, or ErrNotFound.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, title, content, content_hash, size_bytes, modified_at, indexed_at
		FROM documents
		WHERE path = ?`, path)

	return scanDocument(row)
}

// DeleteDocument removes the document at path together with its chunks and
// images, returning the deleted chunk ids so the caller can drop their
// vectors. Returns ErrNotFound when the path is not tracked.
func (s *Store) DeleteDocument(ctx context.Context, path string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var docID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE path = ?`, path).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up document %s: %w", path, err)
	}

	chunkIDs, err := chunkIDsForDocument(ctx, tx, docID)
	if err != nil {
		return nil, err
	}

	// Chunk and image rows go with the document via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return nil, fmt.Errorf("failed to delete document %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}

	return chunkIDs, nil
}

// DeleteAllDocuments drops every document and, through cascades, every chunk
// and image. Used by full rebuilds.
func (s *Store) DeleteAllDocuments(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// ReplaceChunks atomically replaces a document's chunks and images with the
// given ones, returning the new chunk ids in ordinal order. Image chunk scope
// is taken from Image.ChunkOrdinal.
func (s *Store) ReplaceChunks(ctx context.Context, docID int64, chunks []Chunk, images []Image) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := replaceChunks(ctx, tx, docID, chunks, images)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit chunk replacement: %w", err)
	}
	return ids, nil
}

// ReplaceDocument upserts the document row and swaps its chunk and image set
// in a single transaction, so a concurrent reader never sees new content
// paired with the old chunks. The document's ID is set; the prior chunk ids
// (whose vectors are now stale) and the new chunk ids in ordinal order are
// returned.
func (s *Store) ReplaceDocument(ctx context.Context, d *Document, chunks []Chunk, images []Image) (oldIDs, newIDs []int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	docID, err := upsertDocument(ctx, tx, d)
	if err != nil {
		return nil, nil, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ? ORDER BY ordinal`, docID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list prior chunks: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		oldIDs = append(oldIDs, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, nil, fmt.Errorf("failed to iterate prior chunks: %w", err)
	}
	_ = rows.Close()

	newIDs, err = replaceChunks(ctx, tx, docID, chunks, images)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit document replacement: %w", err)
	}
	return oldIDs, newIDs, nil
}

func replaceChunks(ctx context.Context, tx dbtx, docID int64, chunks []Chunk, images []Image) ([]int64, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE document_id = ?`, docID); err != nil {
		return nil, fmt.Errorf("failed to delete images: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return nil, fmt.Errorf("failed to delete chunks: %w", err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, ordinal, content, start_char, end_char)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		var id int64
		if err := chunkStmt.QueryRowContext(ctx, docID, c.Ordinal, c.Content, c.StartChar, c.EndChar).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to insert chunk %d: %w", c.Ordinal, err)
		}
		ids = append(ids, id)
	}

	imageStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO images (document_id, chunk_id, source_path, resolved_path, alt_text)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image statement: %w", err)
	}
	defer imageStmt.Close()

	for _, img := range images {
		var chunkID any
		if img.ChunkOrdinal >= 0 && img.ChunkOrdinal < len(ids) {
			chunkID = ids[img.ChunkOrdinal]
		}
		if _, err := imageStmt.ExecContext(ctx, docID, chunkID, img.SourcePath, img.ResolvedPath, img.AltText); err != nil {
			return nil, fmt.Errorf("failed to insert image %s: %w", img.SourcePath, err)
		}
	}

	return ids, nil
}

// GetChunkByID returns a chunk by id, or ErrNotFound.
func (s *Store) GetChunkByID(ctx context.Context, id int64) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var c Chunk
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, ordinal, content, start_char, end_char
		FROM chunks
		WHERE id = ?`, id).
		Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content, &c.StartChar, &c.EndChar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk %d: %w", id, err)
	}

	return &c, nil
}

// GetDocumentForChunk returns the document that owns the given chunk,
// or ErrNotFound.
func (s *Store) GetDocumentForChunk(ctx context.Context, chunkID int64) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.path, d.title, d.content, d.content_hash, d.size_bytes, d.modified_at, d.indexed_at
		FROM documents d
		JOIN chunks c ON c.document_id = d.id
		WHERE c.id = ?`, chunkID)

	return scanDocument(row)
}

// ChunksForDocument returns a document's chunks in ordinal order.
func (s *Store) ChunksForDocument(ctx context.Context, docID int64) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, ordinal, content, start_char, end_char
		FROM chunks
		WHERE document_id = ?
		ORDER BY ordinal`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content, &c.StartChar, &c.EndChar); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// ImagesForDocument returns a document's image references.
func (s *Store) ImagesForDocument(ctx context.Context, docID int64) ([]Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_id, source_path, resolved_path, alt_text
		FROM images
		WHERE document_id = ?
		ORDER BY id`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var (
			img     Image
			chunkID sql.NullInt64
		)
		if err := rows.Scan(&img.ID, &img.DocumentID, &chunkID, &img.SourcePath, &img.ResolvedPath, &img.AltText); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		img.ChunkID = chunkID.Int64
		img.ChunkOrdinal = -1
		images = append(images, img)
	}

	return images, rows.Err()
}

// ChunkIDs returns every chunk id in the store, ascending. Used for
// consistency checking against the vector index.
func (s *Store) ChunkIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ClearFingerprint empties a document's fingerprint so the next incremental
// update treats it as modified. Used when a vector write failed after the
// document transaction committed.
func (s *Store) ClearFingerprint(ctx context.Context, docID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	res, err := s.db.ExecContext(ctx, `UPDATE documents SET content_hash = '' WHERE id = ?`, docID)
	if err != nil {
		return fmt.Errorf("failed to clear fingerprint: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %d: %w", docID, ErrNotFound)
	}
	return nil
}

// Stats returns document, chunk, and image counts plus the most recent
// indexing time.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var (
		st          Stats
		lastIndexed int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM images),
			(SELECT COALESCE(MAX(indexed_at), 0) FROM documents)`).
		Scan(&st.Documents, &st.Chunks, &st.Images, &lastIndexed)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	st.LastIndexed = timeOrZero(lastIndexed)

	return &st, nil
}

// CheckIntegrity runs SQLite's integrity check and probes for the expected
// schema. Corruption is reported, never repaired; the remediation is a full
// rebuild.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	var result string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN ('documents', 'chunks', 'images')`).
		Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 3 {
		return fmt.Errorf("schema incomplete: %d of 3 tables present", count)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

func chunkIDsForDocument(ctx context.Context, tx *sql.Tx, docID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ? ORDER BY ordinal`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document chunks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// scanDocument scans one document row, mapping sql.ErrNoRows to ErrNotFound.
func scanDocument(row *sql.Row) (*Document, error) {
	var (
		d                 Document
		modified, indexed int64
	)
	err := row.Scan(&d.ID, &d.Path, &d.Title, &d.Content, &d.Fingerprint, &d.Size, &modified, &indexed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	d.ModifiedAt = timeOrZero(modified)
	d.IndexedAt = timeOrZero(indexed)

	return &d, nil
}

// Timestamps are stored as Unix epoch seconds; zero means unset.
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// isConstraintErr reports whether err belongs to the SQLITE_CONSTRAINT
// class (unique, foreign key, check, ...).
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
