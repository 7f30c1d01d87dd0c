// Package ingest turns an uploaded document into embedded chunks in its
// domain's collection.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/lexrag/internal/chunker"
	"github.com/kalambet/lexrag/internal/models"
	"github.com/kalambet/lexrag/internal/retrieval"
	"github.com/kalambet/lexrag/internal/storage"
)

// ErrEmptyDocument is returned when a document yields no chunks.
var ErrEmptyDocument = errors.New("no text extracted from file")

// Error wraps any failure during ingestion.
type Error struct {
	Err error
}

func (e *Error) Error() string { return "ingestion failed: " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// TextExtractor converts raw bytes into text based on the filename.
type TextExtractor interface {
	Extract(content []byte, filename string) (string, error)
}

// DocumentRegistry records ingested documents.
type DocumentRegistry interface {
	SaveDocument(d storage.Document) error
	DeleteDocumentsByDomain(domain string) (int, error)
}

// Pipeline orchestrates extraction, chunking, embedding and storage.
// Ingestions into the same domain are serialized.
type Pipeline struct {
	extractor TextExtractor
	encoder   retrieval.Encoder
	vectors   retrieval.VectorStore
	docs      DocumentRegistry
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates a Pipeline. docs may be nil to skip the registry.
func NewPipeline(extractor TextExtractor, encoder retrieval.Encoder, vectors retrieval.VectorStore, docs DocumentRegistry) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		encoder:   encoder,
		vectors:   vectors,
		docs:      docs,
		logger:    slog.Default(),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) domainLock(domain string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[domain]
	if !ok {
		l = &sync.Mutex{}
		p.locks[domain] = l
	}
	return l
}

// Ingest stores content as a new document in the domain's collection and
// returns its id and chunk count. With reset set, the collection and the
// domain's registry rows are cleared after the upload has been extracted and
// embedded, so a rejected upload never clears anything. Every failure is an
// *Error.
func (p *Pipeline) Ingest(ctx context.Context, content []byte, filename, domain string, dctx models.Context, reset bool) (string, int, error) {
	l := p.domainLock(domain)
	l.Lock()
	defer l.Unlock()

	docID, n, err := p.ingest(ctx, content, filename, domain, dctx, reset)
	if err != nil {
		p.logger.Warn("ingestion failed", "filename", filename, "domain", domain, "error", err)
		return "", 0, &Error{Err: err}
	}
	return docID, n, nil
}

func (p *Pipeline) ingest(ctx context.Context, content []byte, filename, domain string, dctx models.Context, reset bool) (string, int, error) {
	text, err := p.extractor.Extract(content, filename)
	if err != nil {
		return "", 0, err
	}
	p.logger.Debug("extracted text", "filename", filename, "length", len(text))

	chunks := chunker.Split(text, dctx.ChunkSize, 0)
	if len(chunks) == 0 {
		return "", 0, ErrEmptyDocument
	}

	embeddings, err := p.encoder.Encode(ctx, domain, chunks)
	if err != nil {
		return "", 0, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return "", 0, fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}

	// Nothing below runs for an upload that failed extraction or encoding.
	name := retrieval.CollectionName(domain)
	coll, err := p.vectors.EnsureCollection(ctx, name, reset)
	if err != nil {
		return "", 0, fmt.Errorf("preparing collection %s: %w", name, err)
	}
	if reset {
		p.logger.Info("collection reset", "collection", name)
		if p.docs != nil {
			if _, err := p.docs.DeleteDocumentsByDomain(domain); err != nil {
				return "", 0, fmt.Errorf("clearing document registry: %w", err)
			}
		}
	}

	docID := uuid.New().String()
	dim := coll.Dimension
	if dim == 0 {
		dim = len(embeddings[0])
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return "", 0, fmt.Errorf("chunk %d: %w: want %d, got %d", i, retrieval.ErrDimensionMismatch, dim, len(e))
		}
	}

	metadatas := make([]retrieval.Metadata, len(chunks))
	ids := make([]string, len(chunks))
	for i := range chunks {
		metadatas[i] = retrieval.Metadata{DocID: docID, Filename: filename, Index: i}
		ids[i] = fmt.Sprintf("%s_%d", docID, i)
	}
	if err := p.vectors.Add(ctx, coll, chunks, embeddings, metadatas, ids); err != nil {
		return "", 0, fmt.Errorf("storing chunks: %w", err)
	}

	if p.docs != nil {
		err := p.docs.SaveDocument(storage.Document{
			DocID:      docID,
			Domain:     domain,
			Filename:   filename,
			ChunkCount: len(chunks),
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return "", 0, fmt.Errorf("recording document %s: %w", docID, err)
		}
	}

	p.logger.Info("document ingested", "doc_id", docID, "filename", filename, "domain", domain, "chunks", len(chunks), "dim", dim)
	return docID, len(chunks), nil
}
