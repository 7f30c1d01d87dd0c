package engine

import "github.com/kalambet/lexrag/internal/ollama"

// OllamaEngine serves embeddings from a local Ollama daemon.
type OllamaEngine struct {
	*ollama.Client
}

var _ Engine = (*OllamaEngine)(nil)

// NewOllamaEngine returns an engine backed by the daemon at baseURL.
func NewOllamaEngine(baseURL string) *OllamaEngine {
	return &OllamaEngine{Client: ollama.New(baseURL)}
}

// String names the backend for status output.
func (e *OllamaEngine) String() string {
	return "ollama at " + e.BaseURL()
}
