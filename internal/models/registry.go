// Package models resolves a domain to its embedding model and parameters
// and keeps one loaded context per domain for the life of the process.
package models

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kalambet/lexrag/internal/engine"
	"github.com/kalambet/lexrag/internal/retrieval"
	"golang.org/x/sync/singleflight"
)

// Context is the loaded configuration of one domain.
type Context struct {
	Domain          string `json:"domain"`
	ModelName       string `json:"model_name"`
	EmbeddingDim    int    `json:"embedding_dim"`
	MaxTokens       int    `json:"max_tokens"`
	ChunkSize       int    `json:"chunk_size"`
	GenerationModel string `json:"generation_model"`
}

// LoadError reports a failed model load. Failed loads are not cached.
type LoadError struct {
	Domain string
	Model  string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading model %s for domain %s: %v", e.Model, e.Domain, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Config configures a Registry.
type Config struct {
	// Models maps domain names to embedding model identifiers. Unknown
	// domains use the "general" entry.
	Models map[string]string
	// GenerationModel is the LLM model id stamped on every context.
	GenerationModel string
	// Pull downloads missing models instead of failing the load.
	Pull bool
}

// loadTimeout bounds one model load, including a pull of a missing model.
const loadTimeout = 15 * time.Minute

// Registry owns the per-domain model contexts. At most one load per domain
// is in flight at any time; concurrent callers share its result.
type Registry struct {
	engine   engine.Engine
	embedder *retrieval.Embedder
	cfg      Config
	logger   *slog.Logger

	mu     sync.RWMutex
	loaded map[string]Context
	group  singleflight.Group
}

// Compile-time check that Registry can back a Retriever.
var _ retrieval.Encoder = (*Registry)(nil)

// NewRegistry creates a Registry. Missing config values use the defaults.
func NewRegistry(e engine.Engine, cfg Config, logger *slog.Logger) *Registry {
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = DefaultGenerationModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		engine:   e,
		embedder: retrieval.NewEmbedder(e),
		cfg:      cfg,
		logger:   logger,
		loaded:   make(map[string]Context),
	}
}

// Domains returns the configured domain names, sorted.
func (r *Registry) Domains() []string {
	names := make([]string, 0, len(r.cfg.Models))
	for d := range r.cfg.Models {
		names = append(names, d)
	}
	sort.Strings(names)
	return names
}

// HasDomain reports whether domain is configured.
func (r *Registry) HasDomain(domain string) bool {
	_, ok := r.cfg.Models[domain]
	return ok
}

// ModelFor returns the embedding model identifier used for domain.
func (r *Registry) ModelFor(domain string) string {
	if m, ok := r.cfg.Models[domain]; ok {
		return m
	}
	return r.cfg.Models[DomainGeneral]
}

// Loaded returns the contexts loaded so far, sorted by domain.
func (r *Registry) Loaded() []Context {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Context, 0, len(r.loaded))
	for _, c := range r.loaded {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// Get returns the domain's context, loading its model on first use.
// Concurrent callers share one load. The load is detached from any single
// caller's cancellation and bounded by loadTimeout instead; a caller whose
// ctx ends stops waiting without aborting the load for the others.
func (r *Registry) Get(ctx context.Context, domain string) (Context, error) {
	r.mu.RLock()
	c, ok := r.loaded[domain]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	ch := r.group.DoChan(domain, func() (any, error) {
		r.mu.RLock()
		c, ok := r.loaded[domain]
		r.mu.RUnlock()
		if ok {
			return c, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		c, err := r.load(loadCtx, domain)
		if err != nil {
			return Context{}, err
		}

		r.mu.Lock()
		r.loaded[domain] = c
		r.mu.Unlock()
		return c, nil
	})

	select {
	case <-ctx.Done():
		return Context{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Context{}, res.Err
		}
		if res.Shared {
			r.logger.Debug("shared model load", "domain", domain)
		}
		return res.Val.(Context), nil
	}
}

func (r *Registry) load(ctx context.Context, domain string) (Context, error) {
	model := r.ModelFor(domain)
	if model == "" {
		return Context{}, &LoadError{Domain: domain, Err: fmt.Errorf("no embedding model configured")}
	}
	r.logger.Info("loading embedding model", "domain", domain, "model", model)

	if !r.engine.HasModel(ctx, model) {
		if !r.cfg.Pull {
			return Context{}, &LoadError{Domain: domain, Model: model, Err: fmt.Errorf("model not available locally")}
		}
		r.logger.Info("pulling embedding model", "model", model)
		if err := r.engine.PullModel(ctx, model, nil); err != nil {
			return Context{}, &LoadError{Domain: domain, Model: model, Err: err}
		}
	}

	sample, err := r.embedder.EmbedBatch(ctx, model, []string{"test"})
	if err != nil {
		return Context{}, &LoadError{Domain: domain, Model: model, Err: err}
	}
	if len(sample) == 0 || len(sample[0]) == 0 {
		return Context{}, &LoadError{Domain: domain, Model: model, Err: fmt.Errorf("sample embedding is empty")}
	}

	p := ProfileFor(domain)
	c := Context{
		Domain:          domain,
		ModelName:       model,
		EmbeddingDim:    len(sample[0]),
		MaxTokens:       p.MaxTokens,
		ChunkSize:       p.ChunkSize,
		GenerationModel: r.cfg.GenerationModel,
	}
	r.logger.Info("embedding model ready", "domain", domain, "model", model, "dim", c.EmbeddingDim)
	return c, nil
}

// Encode embeds texts with the domain's model, loading it if needed.
// Legal-domain texts are prefixed before encoding.
func (r *Registry) Encode(ctx context.Context, domain string, texts []string) ([][]float32, error) {
	c, err := r.Get(ctx, domain)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := texts
	if prefix := ProfileFor(domain).Prefix; prefix != "" {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = prefix + t
		}
	}

	vecs, err := r.embedder.EmbedBatch(ctx, c.ModelName, inputs)
	if err != nil {
		return nil, fmt.Errorf("encoding %d texts for %s: %w", len(texts), domain, err)
	}
	r.logger.Debug("encoded texts", "domain", domain, "count", len(vecs))
	return vecs, nil
}
