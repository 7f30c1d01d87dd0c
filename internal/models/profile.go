package models

// Profile holds the per-domain chunking and generation parameters.
type Profile struct {
	ChunkSize int
	MaxTokens int
	// Prefix is prepended to every text before encoding.
	Prefix string
}

const (
	DomainGeneral = "general"
	DomainLegal   = "legal"
)

// LegalPrefix biases legal-domain embeddings towards legal language.
const LegalPrefix = "Legal context: "

var profiles = map[string]Profile{
	DomainGeneral: {ChunkSize: 500, MaxTokens: 512},
	DomainLegal:   {ChunkSize: 400, MaxTokens: 1024, Prefix: LegalPrefix},
}

// ProfileFor returns the domain's profile, falling back to the general one.
func ProfileFor(domain string) Profile {
	if p, ok := profiles[domain]; ok {
		return p
	}
	return profiles[DomainGeneral]
}

// DefaultModels maps each built-in domain to its Ollama embedding model.
func DefaultModels() map[string]string {
	return map[string]string{
		DomainGeneral: "all-minilm",
		DomainLegal:   "paraphrase-multilingual",
	}
}

// DefaultGenerationModel is the chat model used when none is configured.
const DefaultGenerationModel = "openai/gpt-oss-20b"
