package engine

import "fmt"

// DetectConfig holds parameters for backend detection.
type DetectConfig struct {
	OllamaBaseURL string
}

// Detect returns the embedding backend for the given configuration.
// Ollama is the only supported backend.
func Detect(cfg DetectConfig) (Engine, error) {
	if cfg.OllamaBaseURL == "" {
		return nil, fmt.Errorf("no embedding backend configured: ollama.base_url is empty")
	}
	return NewOllamaEngine(cfg.OllamaBaseURL), nil
}
