package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Encoder turns texts into embeddings with a domain's model.
type Encoder interface {
	Encode(ctx context.Context, domain string, texts []string) ([][]float32, error)
}

// Retriever combines embedding and vector search to find relevant chunks.
type Retriever struct {
	encoder Encoder
	store   VectorStore
	logger  *slog.Logger
}

// NewRetriever creates a Retriever backed by the given Encoder and VectorStore.
func NewRetriever(encoder Encoder, store VectorStore, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{encoder: encoder, store: store, logger: logger}
}

// Retrieve embeds the question and returns the topK closest chunks of the
// domain's collection, ascending by distance. An empty embedding result or
// a missing collection yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, domain, question string, topK int) ([]Match, error) {
	vecs, err := r.encoder.Encode(ctx, domain, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		r.logger.Warn("no embedding generated for question", "domain", domain)
		return nil, nil
	}

	name := CollectionName(domain)
	c, err := r.store.GetCollection(ctx, name)
	if errors.Is(err, ErrCollectionNotFound) {
		r.logger.Warn("collection not found", "collection", name)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	matches, err := r.store.Query(ctx, c, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	r.logger.Debug("retrieved chunks", "collection", name, "count", len(matches))
	return matches, nil
}
