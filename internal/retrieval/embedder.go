package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/lexrag/internal/engine"
	"golang.org/x/sync/errgroup"
)

// embedBatchSize bounds how many texts go into one backend request.
const embedBatchSize = 32

// Embedder wraps an Engine to generate text embeddings.
type Embedder struct {
	engine engine.Engine
}

// NewEmbedder creates an Embedder using the given Engine.
func NewEmbedder(e engine.Engine) *Embedder {
	return &Embedder{engine: e}
}

// EmbedBatch returns one vector per text, in input order, using model.
// Texts are sent in sub-batches with bounded concurrency. Returns nil (not
// error) for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the engine.

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.engine.Embed(gCtx, model, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding texts %d-%d: got %d vectors", start, end-1, len(vecs))
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
