package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is the registry entry written for every successful ingestion.
// The chunks themselves live in the vector store.
type Document struct {
	DocID      string    `json:"doc_id"`
	Domain     string    `json:"domain"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}
