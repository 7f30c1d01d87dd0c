package retrieval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viant/vec/search"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore keeps collections in SQLite and answers queries with a
// brute-force cosine scan over the collection's embeddings.
// The collections and chunks tables are created by storage migrations.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string, reset bool) (Collection, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Collection{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if reset {
		if err := deleteCollectionTx(ctx, tx, name); err != nil {
			return Collection{}, err
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (name, dimension, created_at) VALUES (?, 0, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return Collection{}, fmt.Errorf("creating collection %s: %w", name, err)
	}

	c, err := getCollectionTx(ctx, tx, name)
	if err != nil {
		return Collection{}, err
	}
	if err := tx.Commit(); err != nil {
		return Collection{}, fmt.Errorf("committing collection %s: %w", name, err)
	}
	return c, nil
}

func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (Collection, error) {
	var c Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT name, dimension FROM collections WHERE name = ?`, name,
	).Scan(&c.Name, &c.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return Collection{}, fmt.Errorf("reading collection %s: %w", name, err)
	}
	return c, nil
}

// Add writes the whole batch in one transaction.
func (s *SQLiteStore) Add(ctx context.Context, c Collection, docs []string, embeddings [][]float32, metadatas []Metadata, ids []string) error {
	dim, err := validateBatch(docs, embeddings, metadatas, ids)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getCollectionTx(ctx, tx, c.Name)
	if err != nil {
		return err
	}
	switch {
	case current.Dimension == 0:
		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET dimension = ? WHERE name = ?`, dim, c.Name); err != nil {
			return fmt.Errorf("setting dimension of %s: %w", c.Name, err)
		}
	case current.Dimension != dim:
		return fmt.Errorf("%w: collection %s has %d, got %d", ErrDimensionMismatch, c.Name, current.Dimension, dim)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection, doc_id, filename, seq, text_chunk, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for i := range docs {
		m := metadatas[i]
		if _, err := stmt.ExecContext(ctx, ids[i], c.Name, m.DocID, m.Filename, m.Index, docs[i], encodeFloat32s(embeddings[i]), createdAt); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", ids[i], err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Query(ctx context.Context, c Collection, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}

	current, err := s.GetCollection(ctx, c.Name)
	if errors.Is(err, ErrCollectionNotFound) {
		s.logger.Warn("query against missing collection", "collection", c.Name)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if current.Dimension != 0 && current.Dimension != len(vector) {
		return nil, fmt.Errorf("%w: collection %s has %d, query has %d", ErrDimensionMismatch, c.Name, current.Dimension, len(vector))
	}

	// Phase 1: scan only id + embedding to find the top-K candidates.
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM chunks WHERE collection = ?`, c.Name)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	q := search.Float32s(vector)
	qMag := q.Magnitude()
	best := newNearest(topK)
	var buf []float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}
		best.offer(id, cosineDistance(q, qMag, buf, search.Float32s(buf).Magnitude()))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	top := best.sorted()
	if len(top) == 0 {
		return nil, nil
	}

	// Phase 2: fetch text and metadata only for the winners.
	args := make([]any, len(top))
	for i, cand := range top {
		args[i] = cand.id
	}
	full, err := s.db.QueryContext(ctx, `SELECT id, doc_id, filename, seq, text_chunk
		FROM chunks WHERE id IN (?`+strings.Repeat(",?", len(top)-1)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K chunks: %w", err)
	}
	defer full.Close()

	byID := make(map[string]Match, len(top))
	for full.Next() {
		var m Match
		if err := full.Scan(&m.ID, &m.Metadata.DocID, &m.Metadata.Filename, &m.Metadata.Index, &m.Text); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		byID[m.ID] = m
	}
	if err := full.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	// IN does not preserve order; rebuild it from the ranked candidates.
	matches := make([]Match, 0, len(top))
	for _, cand := range top {
		m, ok := byID[cand.id]
		if !ok {
			continue
		}
		m.Distance = cand.distance
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *SQLiteStore) Count(ctx context.Context, c Collection) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, c.Name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks in %s: %w", c.Name, err)
	}
	return count, nil
}

func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteCollectionTx(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, dimension FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.Dimension); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func getCollectionTx(ctx context.Context, tx *sql.Tx, name string) (Collection, error) {
	var c Collection
	err := tx.QueryRowContext(ctx,
		`SELECT name, dimension FROM collections WHERE name = ?`, name,
	).Scan(&c.Name, &c.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return Collection{}, fmt.Errorf("reading collection %s: %w", name, err)
	}
	return c, nil
}

func deleteCollectionTx(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return nil
}
