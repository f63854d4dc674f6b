// Package vectorstore implements Argus's Vector Store Adapter (component
// B): storage and nearest-neighbor search over 768-dimensional article
// embeddings, backed by the pgvector extension on the same Postgres
// instance as the Persistent Store.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"argus/internal/errs"
)

// ErrNotFound is returned when no embedding exists for the requested article.
var ErrNotFound = errors.New("vectorstore: not found")

// Match is one nearest-neighbor result.
type Match struct {
	ArticleID  int64
	Similarity float64 // cosine similarity in [-1, 1], higher is closer
}

// Store persists or updates an article's embedding and its denormalized
// entity/date columns (used by the candidate date-window query alongside
// the Persistent Store's own table).
type Store struct {
	db         *sql.DB
	dimensions int
}

// New returns a Store sharing the given connection pool. dimensions must
// match the pgvector column's fixed width (768 by default).
func New(db *sql.DB, dimensions int) *Store {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &Store{db: db, dimensions: dimensions}
}

// EnsureIndex creates the HNSW approximate-nearest-neighbor index used by
// TopK, if it doesn't already exist.
func (s *Store) EnsureIndex(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_article_vectors_embedding
		ON article_vectors USING hnsw (embedding vector_cosine_ops)`)
	if err != nil {
		return errs.Transientf("creating vector index: %v", err)
	}
	return nil
}

// Upsert stores embedding for articleID along with the entity IDs and
// dates needed to satisfy the date-window half of the Similarity Engine's
// dual-query candidate retrieval without a join back to the
// Persistent Store on the hot path.
func (s *Store) Upsert(ctx context.Context, articleID int64, embedding []float64, entityIDs []int64) error {
	if len(embedding) != s.dimensions {
		return errs.Dataf("embedding has %d dimensions, want %d", len(embedding), s.dimensions).
			WithField("article_id", articleID)
	}
	ids, err := json.Marshal(entityIDs)
	if err != nil {
		return errs.Validationf("marshaling entity ids: %v", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO article_vectors (article_id, embedding, entity_ids, pub_date, event_date)
		SELECT $1, $2, $3, pub_date, event_date FROM articles WHERE id = $1
		ON CONFLICT (article_id) DO UPDATE SET embedding = EXCLUDED.embedding, entity_ids = EXCLUDED.entity_ids`,
		articleID, formatVector(embedding), ids)
	if err != nil {
		return errs.Transientf("upserting embedding: %v", err)
	}
	return nil
}

// Fetch returns the stored embedding for an article.
func (s *Store) Fetch(ctx context.Context, articleID int64) ([]float64, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT embedding::text FROM article_vectors WHERE article_id = $1`, articleID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errs.Transientf("fetching embedding: %v", err)
	}
	return parseVector(raw)
}

// TopK returns the k nearest neighbors to query by cosine distance,
// excluding excludeID (the article being compared against itself). This is
// the vector half of the Similarity Engine's dual-query candidate
// retrieval; the date-window half comes from the Persistent Store.
func (s *Store) TopK(ctx context.Context, query []float64, k int, excludeID int64) ([]Match, error) {
	if len(query) != s.dimensions {
		return nil, errs.Dataf("query embedding has %d dimensions, want %d", len(query), s.dimensions)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT article_id, 1 - (embedding <=> $1) AS similarity
		FROM article_vectors
		WHERE article_id != $2
		ORDER BY embedding <=> $1
		LIMIT $3`, formatVector(query), excludeID, k)
	if err != nil {
		return nil, errs.Transientf("searching vector store: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ArticleID, &m.Similarity); err != nil {
			return nil, errs.Transientf("scanning vector match: %v", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes an article's embedding, e.g. when the article itself is deleted.
func (s *Store) Delete(ctx context.Context, articleID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM article_vectors WHERE article_id = $1`, articleID)
	if err != nil {
		return errs.Transientf("deleting embedding: %v", err)
	}
	return nil
}

// formatVector renders a float64 slice as pgvector's literal syntax,
// "[0.1,0.2,...]" — there's no native Go []float64 driver value for it.
func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVector reverses formatVector's output, trimming the bracket
// delimiters pgvector's ::text cast keeps.
func parseVector(s string) ([]float64, error) {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	out := make([]float64, len(fields))
	for i, f := range fields {
		val, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing vector component %q: %w", f, err)
		}
		out[i] = val
	}
	return out, nil
}
