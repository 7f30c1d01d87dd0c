package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	Domains DomainsConfig
	Storage StorageConfig
	LLM     LLMConfig
	Ingest  IngestConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type OllamaConfig struct {
	BaseURL string
}

type DomainsConfig struct {
	// Models maps domain names to embedding model identifiers.
	Models map[string]string
	// PullMissing downloads a domain's model on first load when Ollama
	// does not have it yet.
	PullMissing bool
}

type StorageConfig struct {
	DataDir string
	// VectorBackend is "sqlite" (durable) or "memory".
	VectorBackend string
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// RequestsPerMinute paces calls to the provider; 0 disables pacing.
	RequestsPerMinute int
}

type IngestConfig struct {
	StrictPDF bool
}

type LogConfig struct {
	Level string
}

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Domains: DomainsConfig{
			Models: map[string]string{
				"general": "all-minilm",
				"legal":   "paraphrase-multilingual",
			},
			PullMissing: true,
		},
		Storage: StorageConfig{
			DataDir:       defaultDataDir(),
			VectorBackend: BackendSQLite,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "openai/gpt-oss-20b",
			Timeout: 60 * time.Second,
			// Groq's free tier allows 30 requests per minute.
			RequestsPerMinute: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/lexrag/config.yaml, then from the environment.
// A .env file in the working directory is loaded first; variables that
// are already set take precedence over it.
//
// Environment variables (LEXRAG_*) override file values. GROQ_API_KEY,
// DOMAIN_MODELS and VECTOR_DB_DIR are accepted as aliases.
//
// A missing LLM key is not an error: questions are still answered with
// an error message in place of the generated text.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.VectorBackend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid config: storage.vector_backend must be %q or %q, got %q",
			BackendSQLite, BackendMemory, c.Storage.VectorBackend)
	}
	if _, ok := c.Domains.Models["general"]; !ok {
		return fmt.Errorf("invalid config: domains.models must define a model for %q", "general")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid config: llm.requests_per_minute must not be negative")
	}
	for domain, model := range c.Domains.Models {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("invalid config: empty model for domain %q", domain)
		}
	}
	return nil
}

// Addr is the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "lexrag-data"
		}
	}
	return filepath.Join(dir, "lexrag")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "lexrag", "config.yaml")
}
