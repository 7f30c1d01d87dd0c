// Package answer asks the LLM for a structured answer and parses the reply.
package answer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kalambet/lexrag/internal/llm"
	"github.com/kalambet/lexrag/internal/models"
)

// MissingKeyMessage is reported when no LLM credential is configured.
const MissingKeyMessage = "GROQ_API_KEY not set."

// Answer is the structured result of one question.
type Answer struct {
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	Guidance   string   `json:"guidance"`
	Citations  []string `json:"citations"`
	Disclaimer string   `json:"disclaimer"`
	Error      string   `json:"error,omitempty"`
}

// Completer sends one prompt to an LLM.
type Completer interface {
	Complete(ctx context.Context, model, prompt string, maxTokens int) (llm.Completion, error)
}

// Generator builds the prompt, calls the LLM once and parses the reply.
type Generator struct {
	client Completer
	parser *Parser
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil client means no credential is
// configured; Generate then fails fast without any network call. A nil
// parser uses the default headers.
func NewGenerator(client Completer, parser *Parser, logger *slog.Logger) *Generator {
	if parser == nil {
		parser = MustParser()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, parser: parser, logger: logger}
}

// Generate always returns an Answer with non-empty summary, key points and
// guidance. Failures set Error and are never retried. Citations and the
// disclaimer are left to the caller.
func (g *Generator) Generate(ctx context.Context, domain, question string, contextTexts []string, dctx models.Context) Answer {
	if g.client == nil {
		g.logger.Warn("LLM credential not configured")
		return g.failed(MissingKeyMessage)
	}

	prompt := BuildPrompt(domain, question, contextTexts)
	completion, err := g.client.Complete(ctx, dctx.GenerationModel, prompt, dctx.MaxTokens)
	if errors.Is(err, llm.ErrNoAPIKey) {
		return g.failed(MissingKeyMessage)
	}
	if err != nil {
		g.logger.Warn("LLM request failed", "model", dctx.GenerationModel, "error", err)
		return g.failed("LLM request failed: " + err.Error())
	}

	g.logger.Debug("LLM reply",
		"model", dctx.GenerationModel,
		"finish_reason", completion.FinishReason,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"total_tokens", completion.Usage.TotalTokens,
	)

	parsed, filled := g.parser.Parse(completion.Text).WithFallbacks(completion.Text)
	for _, s := range filled {
		g.logger.Warn("section missing from LLM reply, using fallback", "section", s.String())
	}
	return Answer{
		Summary:   parsed.Summary,
		KeyPoints: parsed.KeyPoints,
		Guidance:  parsed.Guidance,
	}
}

// failed builds an error answer whose summary carries the diagnostic.
func (g *Generator) failed(msg string) Answer {
	parsed, _ := Parsed{}.WithFallbacks(msg)
	return Answer{
		Summary:   parsed.Summary,
		KeyPoints: parsed.KeyPoints,
		Guidance:  parsed.Guidance,
		Error:     msg,
	}
}
