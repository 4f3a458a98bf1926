// Package vectorstore provides a local sqlite-vec backed document store
// used when a task is configured with a vector store and by the local and
// hybrid report sources.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"researchnerd/internal/logging"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver.
	vec.Auto()
}

// Document is one stored chunk with its embedding.
type Document struct {
	URL         string
	Title       string
	Content     string
	OriginQuery string
	Kind        string
}

// Match is a similarity search result.
type Match struct {
	Document
	Similarity float64
}

// Store is a sqlite-vec document store. Open with ":memory:" for a
// task-scoped ephemeral store.
type Store struct {
	db   *sql.DB
	dims int
}

// Open creates or opens a store at path with the given embedding
// dimensionality.
func Open(path string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("embedding dimensionality must be positive, got %d", dims)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	schema := fmt.Sprintf(`
	CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(embedding float[%d]);
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		origin_query TEXT,
		kind TEXT
	);`, dims)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logging.Get(logging.CategoryStore).Info("vector store opened at %s (dims=%d)", path, dims)
	return &Store{db: db, dims: dims}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Upsert stores documents with their embeddings. Document i pairs with
// embeddings[i].
func (s *Store) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("documents (%d) and embeddings (%d) must pair up", len(docs), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, doc := range docs {
		if len(embeddings[i]) != s.dims {
			return fmt.Errorf("embedding %d has %d dims, store expects %d", i, len(embeddings[i]), s.dims)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO documents (url, title, content, origin_query, kind) VALUES (?, ?, ?, ?, ?)",
			doc.URL, doc.Title, doc.Content, doc.OriginQuery, doc.Kind)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vec_documents (rowid, embedding) VALUES (?, ?)",
			rowID, encodeFloat32Blob(embeddings[i])); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}
	return tx.Commit()
}

// Query returns the topK documents most similar to the query embedding.
// Filter keys (url, origin_query, kind) restrict matches by equality.
func (s *Store) Query(ctx context.Context, queryEmbedding []float32, topK int, filter map[string]string) ([]Match, error) {
	if len(queryEmbedding) != s.dims {
		return nil, fmt.Errorf("query embedding has %d dims, store expects %d", len(queryEmbedding), s.dims)
	}
	if topK <= 0 {
		topK = 5
	}

	where, args := buildFilter(filter)
	query := fmt.Sprintf(`
		SELECT d.url, d.title, d.content, d.origin_query, d.kind,
		       vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_documents v
		JOIN documents d ON d.id = v.rowid
		%s
		ORDER BY distance ASC
		LIMIT ?`, where)

	queryArgs := append([]any{encodeFloat32Blob(queryEmbedding)}, args...)
	queryArgs = append(queryArgs, topK)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.URL, &m.Title, &m.Content, &m.OriginQuery, &m.Kind, &distance); err != nil {
			logging.Get(logging.CategoryStore).Warn("failed to scan match row: %v", err)
			continue
		}
		m.Similarity = 1 - distance
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// buildFilter renders a WHERE clause for the allowed metadata keys.
func buildFilter(filter map[string]string) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	allowed := map[string]string{"url": "d.url", "origin_query": "d.origin_query", "kind": "d.kind"}

	var conditions []string
	var args []any
	for _, key := range []string{"url", "origin_query", "kind"} {
		if value, ok := filter[key]; ok {
			conditions = append(conditions, allowed[key]+" = ?")
			args = append(args, value)
		}
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// encodeFloat32Blob packs a vector into sqlite-vec's little-endian blob
// format.
func encodeFloat32Blob(values []float32) []byte {
	blob := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}
