package retrieval

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound is returned when a named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when an embedding's length differs
	// from the dimension established for its collection.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// VectorStore persists chunks with their embeddings in named collections
// and answers nearest-neighbour queries by cosine distance.
//
// Two backends exist: SQLiteStore (durable) and MemoryStore (process-local).
// Callers must not assume either.
type VectorStore interface {
	// EnsureCollection returns the named collection, creating it if needed.
	// With reset set, an existing collection is dropped and recreated empty.
	EnsureCollection(ctx context.Context, name string, reset bool) (Collection, error)

	// GetCollection returns ErrCollectionNotFound if name does not exist.
	GetCollection(ctx context.Context, name string) (Collection, error)

	// Add appends parallel slices of equal length. The write is atomic with
	// respect to concurrent Query calls. The first Add to an empty collection
	// establishes its dimension; later mismatches fail with ErrDimensionMismatch.
	Add(ctx context.Context, c Collection, docs []string, embeddings [][]float32, metadatas []Metadata, ids []string) error

	// Query returns up to topK matches ordered by ascending distance. A
	// missing collection yields an empty result and a logged warning.
	Query(ctx context.Context, c Collection, vector []float32, topK int) ([]Match, error)

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context, c Collection) (int, error)

	// DeleteCollection drops the collection and all its chunks.
	DeleteCollection(ctx context.Context, name string) error

	// ListCollections returns every collection ordered by name.
	ListCollections(ctx context.Context) ([]Collection, error)
}

// Collection is a handle to a named partition of the store. Dimension is
// zero until the first chunk is written.
type Collection struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

// Metadata travels with every chunk.
type Metadata struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Index    int    `json:"index"`
}

// Match is one query result.
type Match struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance float32  `json:"distance"`
}

// CollectionName returns the collection holding a domain's chunks.
func CollectionName(domain string) string {
	return domain + "_docs"
}

// validateBatch checks that the parallel Add slices line up and share one
// dimension, returning that dimension.
func validateBatch(docs []string, embeddings [][]float32, metadatas []Metadata, ids []string) (int, error) {
	n := len(docs)
	if len(embeddings) != n || len(metadatas) != n || len(ids) != n {
		return 0, errors.New("add: docs, embeddings, metadatas and ids must have equal length")
	}
	if n == 0 {
		return 0, nil
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return 0, errors.New("add: empty embedding")
	}
	for _, e := range embeddings[1:] {
		if len(e) != dim {
			return 0, ErrDimensionMismatch
		}
	}
	return dim, nil
}
