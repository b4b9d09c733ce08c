// Package store persists the knowledge base: ingested documents and their
// embedded chunks, in a single SQLite file.
//
// The store is written only by the ingestion path and read concurrently by
// every persona's retrieval call during a dispatch round, so reads take a
// shared lock and the connection pool is pinned to one connection to keep
// SQLite happy under WAL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"counsel/internal/logging"
	"counsel/internal/types"
)

// Document is one ingested source file. Chunks reference their document by
// ID; persona scopes are expressed as sets of document IDs.
type Document struct {
	ID         string
	Name       string
	Path       string
	IngestedAt time.Time
	ChunkCount int
}

// Stats summarizes the knowledge base for diagnostics.
type Stats struct {
	Documents  int
	Chunks     int
	Dimensions int // 0 when the store is empty
	VecNative  bool
}

// ChunkStore is the SQLite-backed knowledge store.
type ChunkStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	// vecNative reports whether the vec0 virtual-table module is present in
	// the driver. Similarity search works either way; the flag is surfaced
	// in Stats so operators can tell which build they are running.
	vecNative bool
}

// Open initializes the SQLite database at the given path. ":memory:" opens
// an in-process database for tests.
func Open(path string) (*ChunkStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set synchronous=NORMAL: %v", err)
	}

	s := &ChunkStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.vecNative = s.detectVec()
	if s.vecNative {
		logging.Store("sqlite-vec extension detected")
	} else {
		logging.StoreDebug("sqlite-vec extension not available; using in-memory cosine ranking")
	}

	logging.Store("chunk store ready at %s", path)
	return s, nil
}

// initialize creates the schema if it does not exist.
func (s *ChunkStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		path        TEXT NOT NULL DEFAULT '',
		ingested_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INTEGER NOT NULL,
		text        TEXT NOT NULL,
		embedding   BLOB NOT NULL,
		UNIQUE(document_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: initialize schema: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("failed to enable foreign_keys: %v", err)
	}
	return nil
}

// detectVec probes for the vec0 virtual-table module.
func (s *ChunkStore) detectVec() bool {
	_, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS temp.vec_probe USING vec0(embedding float[4])")
	if err != nil {
		return false
	}
	_, _ = s.db.Exec("DROP TABLE IF EXISTS temp.vec_probe")
	return true
}

// Close closes the underlying database.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ReplaceDocument upserts a document record and replaces all of its chunks
// in one transaction, so a re-ingest never leaves a half-written document
// visible to retrieval.
func (s *ChunkStore) ReplaceDocument(ctx context.Context, doc Document, chunks []types.KnowledgeChunk) error {
	timer := logging.StartTimer(logging.CategoryStore, "ReplaceDocument")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, name, path, ingested_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, path = excluded.path, ingested_at = excluded.ingested_at`,
		doc.ID, doc.Name, doc.Path, doc.IngestedAt.UTC()); err != nil {
		return fmt.Errorf("store: upsert document %s: %w", doc.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("store: clear chunks for %s: %w", doc.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (document_id, chunk_index, text, embedding) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		blob, err := encodeVector(c.Embedding)
		if err != nil {
			return fmt.Errorf("store: encode chunk %d of %s: %w", i, doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, i, c.Text, blob); err != nil {
			return fmt.Errorf("store: insert chunk %d of %s: %w", i, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}

	logging.Store("document %s (%s): %d chunks stored", doc.ID, doc.Name, len(chunks))
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *ChunkStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docID); err != nil {
		return fmt.Errorf("store: delete chunks for %s: %w", docID, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", docID); err != nil {
		return fmt.Errorf("store: delete document %s: %w", docID, err)
	}
	logging.Store("document %s deleted", docID)
	return nil
}

// ChunksByDocuments returns every chunk whose document is in documentIDs,
// in (document, chunk index) order. The scope filter runs in SQL, before
// any scoring, so chunks outside the scope never reach the caller.
func (s *ChunkStore) ChunksByDocuments(ctx context.Context, documentIDs []string) ([]types.KnowledgeChunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.Repeat("?,", len(documentIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(documentIDs))
	for i, id := range documentIDs {
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT c.document_id, d.name, c.chunk_index, c.text, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id IN (%s)
		ORDER BY c.document_id, c.chunk_index`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.KnowledgeChunk
	for rows.Next() {
		var c types.KnowledgeChunk
		var blob []byte
		if err := rows.Scan(&c.DocumentID, &c.DocumentName, &c.ChunkIndex, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("store: scan chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("store: decode chunk %s/%d: %w", c.DocumentID, c.ChunkIndex, err)
		}
		c.Embedding = vec
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate chunks: %w", err)
	}

	logging.StoreDebug("ChunksByDocuments: %d docs in scope, %d chunks", len(documentIDs), len(chunks))
	return chunks, nil
}

// Documents lists every ingested document with its chunk count.
func (s *ChunkStore) Documents(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.path, d.ingested_at, COUNT(c.id)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("store: query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Path, &d.IngestedAt, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("store: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DocumentByPath looks up a document by its source path; ok is false when
// the path has never been ingested.
func (s *ChunkStore) DocumentByPath(ctx context.Context, path string) (Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d Document
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, path, ingested_at FROM documents WHERE path = ?", path).
		Scan(&d.ID, &d.Name, &d.Path, &d.IngestedAt)
	if err == sql.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("store: lookup document by path: %w", err)
	}
	return d, true, nil
}

// Stats reports document and chunk counts plus the embedding width of the
// first stored chunk.
func (s *ChunkStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{VecNative: s.vecNative}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&st.Documents); err != nil {
		return st, fmt.Errorf("store: count documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&st.Chunks); err != nil {
		return st, fmt.Errorf("store: count chunks: %w", err)
	}

	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT embedding FROM chunks LIMIT 1").Scan(&blob)
	if err == nil {
		if vec, decErr := decodeVector(blob); decErr == nil {
			st.Dimensions = len(vec)
		}
	} else if err != sql.ErrNoRows {
		return st, fmt.Errorf("store: sample embedding: %w", err)
	}

	return st, nil
}
