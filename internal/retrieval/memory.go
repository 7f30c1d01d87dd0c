package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/viant/vec/search"
)

// Compile-time check that MemoryStore implements VectorStore.
var _ VectorStore = (*MemoryStore)(nil)

// MemoryStore is a process-local VectorStore. Contents are lost on exit.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	logger      *slog.Logger
}

type memCollection struct {
	dimension int
	chunks    []memChunk
}

type memChunk struct {
	id        string
	text      string
	metadata  Metadata
	embedding []float32
	magnitude float32
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{collections: make(map[string]*memCollection), logger: logger}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, name string, reset bool) (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reset {
		delete(s.collections, name)
	}
	mc, ok := s.collections[name]
	if !ok {
		mc = &memCollection{}
		s.collections[name] = mc
	}
	return Collection{Name: name, Dimension: mc.dimension}, nil
}

func (s *MemoryStore) GetCollection(_ context.Context, name string) (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mc, ok := s.collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return Collection{Name: name, Dimension: mc.dimension}, nil
}

// Add appends the whole batch under one write lock.
func (s *MemoryStore) Add(_ context.Context, c Collection, docs []string, embeddings [][]float32, metadatas []Metadata, ids []string) error {
	dim, err := validateBatch(docs, embeddings, metadatas, ids)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	batch := make([]memChunk, len(docs))
	for i := range docs {
		vec := append([]float32(nil), embeddings[i]...)
		batch[i] = memChunk{
			id:        ids[i],
			text:      docs[i],
			metadata:  metadatas[i],
			embedding: vec,
			magnitude: search.Float32s(vec).Magnitude(),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.collections[c.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, c.Name)
	}
	if mc.dimension != 0 && mc.dimension != dim {
		return fmt.Errorf("%w: collection %s has %d, got %d", ErrDimensionMismatch, c.Name, mc.dimension, dim)
	}
	seen := make(map[string]bool, len(mc.chunks))
	for _, ch := range mc.chunks {
		seen[ch.id] = true
	}
	for _, ch := range batch {
		if seen[ch.id] {
			return fmt.Errorf("inserting chunk %s: duplicate id", ch.id)
		}
		seen[ch.id] = true
	}

	mc.dimension = dim
	mc.chunks = append(mc.chunks, batch...)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, c Collection, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mc, ok := s.collections[c.Name]
	if !ok {
		s.logger.Warn("query against missing collection", "collection", c.Name)
		return nil, nil
	}
	if mc.dimension != 0 && mc.dimension != len(vector) {
		return nil, fmt.Errorf("%w: collection %s has %d, query has %d", ErrDimensionMismatch, c.Name, mc.dimension, len(vector))
	}

	q := search.Float32s(vector)
	qMag := q.Magnitude()
	best := newNearest(topK)
	index := make(map[string]int, len(mc.chunks))
	for i, ch := range mc.chunks {
		index[ch.id] = i
		best.offer(ch.id, cosineDistance(q, qMag, ch.embedding, ch.magnitude))
	}

	top := best.sorted()
	matches := make([]Match, len(top))
	for i, cand := range top {
		ch := mc.chunks[index[cand.id]]
		matches[i] = Match{ID: ch.id, Text: ch.text, Metadata: ch.metadata, Distance: cand.distance}
	}
	return matches, nil
}

func (s *MemoryStore) Count(_ context.Context, c Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mc, ok := s.collections[c.Name]
	if !ok {
		return 0, nil
	}
	return len(mc.chunks), nil
}

func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, name)
	return nil
}

func (s *MemoryStore) ListCollections(_ context.Context) ([]Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Collection, 0, len(s.collections))
	for name, mc := range s.collections {
		out = append(out, Collection{Name: name, Dimension: mc.dimension})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
