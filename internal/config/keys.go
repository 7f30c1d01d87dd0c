package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
	kStringMap
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	aliases []string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "LEXRAG_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "LEXRAG_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "ollama.base_url", typ: kString, env: "LEXRAG_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "domains.models", typ: kStringMap, env: "LEXRAG_DOMAIN_MODELS", aliases: []string{"DOMAIN_MODELS"},
		apply: func(cfg *Config, v any) {
			for domain, model := range v.(map[string]string) {
				cfg.Domains.Models[domain] = model
			}
		},
		extract: func(cfg Config) any { return cfg.Domains.Models },
	},
	{
		key: "domains.pull_missing", typ: kBool, env: "LEXRAG_DOMAINS_PULL_MISSING",
		apply:   func(cfg *Config, v any) { cfg.Domains.PullMissing = v.(bool) },
		extract: func(cfg Config) any { return cfg.Domains.PullMissing },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LEXRAG_STORAGE_DATA_DIR", aliases: []string{"VECTOR_DB_DIR"},
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.vector_backend", typ: kString, env: "LEXRAG_STORAGE_VECTOR_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.VectorBackend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.VectorBackend },
	},
	{
		key: "llm.api_key", typ: kString, env: "LEXRAG_LLM_API_KEY", aliases: []string{"GROQ_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.base_url", typ: kString, env: "LEXRAG_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.model", typ: kString, env: "LEXRAG_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.timeout", typ: kDuration, env: "LEXRAG_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "llm.requests_per_minute", typ: kInt, env: "LEXRAG_LLM_RPM",
		apply:   func(cfg *Config, v any) { cfg.LLM.RequestsPerMinute = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.RequestsPerMinute },
	},
	{
		key: "ingest.strict_pdf", typ: kBool, env: "LEXRAG_INGEST_STRICT_PDF",
		apply:   func(cfg *Config, v any) { cfg.Ingest.StrictPDF = v.(bool) },
		extract: func(cfg Config) any { return cfg.Ingest.StrictPDF },
	},
	{
		key: "log.level", typ: kString, env: "LEXRAG_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func findSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kStringMap:
			v, ok, err := b.GetStringMap(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

// envValue returns the first non-empty value among the key's env var and
// its aliases.
func envValue(s keySpec) (name, raw string) {
	for _, name := range append([]string{s.env}, s.aliases...) {
		if name == "" {
			continue
		}
		if raw := os.Getenv(name); raw != "" {
			return name, raw
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw := envValue(s)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kStringMap:
			if m, err := parseStringMap(raw); err == nil {
				s.apply(cfg, m)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse JSON object from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}
