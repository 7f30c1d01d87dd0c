package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const documentColumns = `doc_id, domain, filename, chunk_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var createdAt string
	if err := row.Scan(&d.DocID, &d.Domain, &d.Filename, &d.ChunkCount, &createdAt); err != nil {
		return Document{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing created_at of %s: %w", d.DocID, err)
	}
	d.CreatedAt = t
	return d, nil
}

// SaveDocument records a finished ingestion. A zero CreatedAt is stamped
// with the current time.
func (s *Store) SaveDocument(d Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?)`,
		d.DocID, d.Domain, d.Filename, d.ChunkCount, d.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", d.DocID, err)
	}
	return nil
}

// GetDocument returns ErrNotFound for an unknown id.
func (s *Store) GetDocument(docID string) (Document, error) {
	row := s.db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE doc_id = ?`, docID)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

// ListDocuments returns registered documents, newest first. An empty domain
// lists every domain.
func (s *Store) ListDocuments(domain string, limit int) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY created_at DESC, doc_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// DeleteDocumentsByDomain drops a domain's registry rows and reports how
// many were removed.
func (s *Store) DeleteDocumentsByDomain(domain string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM documents WHERE domain = ?`, domain)
	if err != nil {
		return 0, fmt.Errorf("deleting %s documents: %w", domain, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
