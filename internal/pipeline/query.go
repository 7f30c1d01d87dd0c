// Package pipeline answers a question end to end: load the domain context,
// retrieve chunks, generate the structured answer, attach citations.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/lexrag/internal/answer"
	"github.com/kalambet/lexrag/internal/models"
	"github.com/kalambet/lexrag/internal/retrieval"
)

const (
	// TopK is the number of chunks retrieved per question.
	TopK = 4

	Disclaimer = "This AI is not a substitute for legal advice; consult a licensed professional."
)

// ContextLoader resolves a domain to its loaded model context.
type ContextLoader interface {
	Get(ctx context.Context, domain string) (models.Context, error)
}

// ChunkRetriever finds the chunks closest to a question.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, domain, question string, topK int) ([]retrieval.Match, error)
}

// AnswerGenerator produces the structured answer from retrieved context.
type AnswerGenerator interface {
	Generate(ctx context.Context, domain, question string, contextTexts []string, dctx models.Context) answer.Answer
}

// Query orchestrates one question against one domain.
type Query struct {
	contexts  ContextLoader
	retriever ChunkRetriever
	generator AnswerGenerator
	logger    *slog.Logger
}

// NewQuery creates a Query wired to the registry, retriever and generator.
func NewQuery(contexts ContextLoader, retriever ChunkRetriever, generator AnswerGenerator, logger *slog.Logger) *Query {
	if logger == nil {
		logger = slog.Default()
	}
	return &Query{
		contexts:  contexts,
		retriever: retriever,
		generator: generator,
		logger:    logger,
	}
}

// Answer runs the query pipeline:
//  1. Load (or reuse) the domain context
//  2. Retrieve the TopK closest chunks
//  3. Generate the structured answer from their texts
//  4. Attach one citation per chunk and the disclaimer
//
// docID is accepted for callers that track the document they uploaded but
// does not restrict retrieval. Model load and store failures are returned
// as errors; LLM failures are reported inside the Answer.
func (q *Query) Answer(ctx context.Context, domain, question, docID string) (answer.Answer, error) {
	start := time.Now()

	dctx, err := q.contexts.Get(ctx, domain)
	if err != nil {
		return answer.Answer{}, err
	}

	matches, err := q.retriever.Retrieve(ctx, domain, question, TopK)
	if err != nil {
		return answer.Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	texts := make([]string, len(matches))
	citations := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
		citations[i] = m.Metadata.DocID
	}

	a := q.generator.Generate(ctx, domain, question, texts, dctx)
	a.Citations = citations
	a.Disclaimer = Disclaimer

	q.logger.Info("query answered",
		"domain", domain,
		"doc_id", docID,
		"chunks_used", len(matches),
		"llm_error", a.Error != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}
