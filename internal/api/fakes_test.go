package api

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kalambet/lexrag/internal/answer"
	"github.com/kalambet/lexrag/internal/ingest"
	"github.com/kalambet/lexrag/internal/models"
	"github.com/kalambet/lexrag/internal/storage"
)

// --- mocks ---

type mockRegistry struct {
	models  map[string]string
	loadErr error

	mu     sync.Mutex
	loaded map[string]models.Context
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		models: map[string]string{"general": "all-minilm", "legal": "paraphrase-multilingual"},
		loaded: make(map[string]models.Context),
	}
}

func (m *mockRegistry) Get(_ context.Context, domain string) (models.Context, error) {
	if m.loadErr != nil {
		return models.Context{}, &models.LoadError{Domain: domain, Model: m.models[domain], Err: m.loadErr}
	}
	p := models.ProfileFor(domain)
	dctx := models.Context{
		Domain:       domain,
		ModelName:    m.models[domain],
		EmbeddingDim: 384,
		MaxTokens:    p.MaxTokens,
		ChunkSize:    p.ChunkSize,
	}
	m.mu.Lock()
	m.loaded[domain] = dctx
	m.mu.Unlock()
	return dctx, nil
}

func (m *mockRegistry) HasDomain(domain string) bool {
	_, ok := m.models[domain]
	return ok
}

func (m *mockRegistry) Domains() []string {
	out := make([]string, 0, len(m.models))
	for d := range m.models {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (m *mockRegistry) Loaded() []models.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Context, 0, len(m.loaded))
	for _, c := range m.loaded {
		out = append(out, c)
	}
	return out
}

type ingestCall struct {
	content  []byte
	filename string
	domain   string
	dctx     models.Context
	reset    bool
}

type mockIngester struct {
	calls []ingestCall
	err   error
}

func (m *mockIngester) Ingest(_ context.Context, content []byte, filename, domain string, dctx models.Context, reset bool) (string, int, error) {
	m.calls = append(m.calls, ingestCall{content, filename, domain, dctx, reset})
	if m.err != nil {
		return "", 0, &ingest.Error{Err: m.err}
	}
	return "doc-123", 3, nil
}

type mockAsker struct {
	domain, question, docID string
	err                     error
}

func (m *mockAsker) Answer(_ context.Context, domain, question, docID string) (answer.Answer, error) {
	m.domain, m.question, m.docID = domain, question, docID
	if m.err != nil {
		return answer.Answer{}, m.err
	}
	return answer.Answer{
		Summary:    "summary",
		KeyPoints:  []string{"a", "b", "c"},
		Guidance:   "guidance",
		Citations:  []string{"doc-123"},
		Disclaimer: "disclaimer",
	}, nil
}

var errBoom = errors.New("boom")

func newTestDeps() (Deps, *mockRegistry, *mockIngester, *mockAsker) {
	reg := newMockRegistry()
	ing := &mockIngester{}
	ask := &mockAsker{}
	return Deps{Domains: reg, Ingester: ing, Query: ask}, reg, ing, ask
}

func seedDocuments(store *storage.Store, docs ...storage.Document) error {
	for _, d := range docs {
		if err := store.SaveDocument(d); err != nil {
			return err
		}
	}
	return nil
}
