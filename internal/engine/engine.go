package engine

import (
	"context"

	"github.com/kalambet/lexrag/internal/ollama"
)

// Engine is the local embedding backend. The model registry and the
// retrieval layer depend on it rather than on a concrete daemon client.
type Engine interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)

	IsRunning(ctx context.Context) bool
	ListModels(ctx context.Context) ([]string, error)
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. onProgress may be nil.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}

// PullProgress reports download progress for a model pull.
type PullProgress = ollama.PullProgress
