package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kalambet/lexrag/internal/answer"
	"github.com/kalambet/lexrag/internal/extract"
	"github.com/kalambet/lexrag/internal/ingest"
	"github.com/kalambet/lexrag/internal/models"
	"github.com/kalambet/lexrag/internal/storage"
)

// DefaultDomain is used when a request names no domain.
const DefaultDomain = "general"

// DomainRegistry resolves domains to loaded model contexts.
type DomainRegistry interface {
	Get(ctx context.Context, domain string) (models.Context, error)
	HasDomain(domain string) bool
	Domains() []string
	Loaded() []models.Context
}

// Ingester stores a document's chunks in a domain's collection.
type Ingester interface {
	Ingest(ctx context.Context, content []byte, filename, domain string, dctx models.Context, reset bool) (string, int, error)
}

// Asker answers a question against a domain.
type Asker interface {
	Answer(ctx context.Context, domain, question, docID string) (answer.Answer, error)
}

// DocumentLister lists the document registry.
type DocumentLister interface {
	ListDocuments(domain string, limit int) ([]storage.Document, error)
}

// Deps holds the collaborators shared by the HTTP and MCP surfaces.
type Deps struct {
	Domains   DomainRegistry
	Ingester  Ingester
	Query     Asker
	Documents DocumentLister // optional; GET /documents returns 501 when nil
}

// UploadResponse is returned after a successful ingestion.
type UploadResponse struct {
	DocID      string `json:"doc_id"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
	DocID    string `json:"doc_id,omitempty"`
	Domain   string `json:"domain,omitempty"`
}

// resolveDomain applies the default and rejects domains with no configured model.
func (d Deps) resolveDomain(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		domain = DefaultDomain
	}
	if !d.Domains.HasDomain(domain) {
		return "", fmt.Errorf("unknown domain %q (available: %s)", domain, strings.Join(d.Domains.Domains(), ", "))
	}
	return domain, nil
}

// ingest loads the domain context and runs the ingestion pipeline.
func (d Deps) ingest(ctx context.Context, content []byte, filename, domain string, reset bool) (UploadResponse, error) {
	dctx, err := d.Domains.Get(ctx, domain)
	if err != nil {
		return UploadResponse{}, err
	}
	docID, n, err := d.Ingester.Ingest(ctx, content, filename, domain, dctx, reset)
	if err != nil {
		return UploadResponse{}, err
	}
	return UploadResponse{
		DocID:      docID,
		ChunkCount: n,
		Message:    fmt.Sprintf("Upload successful! Doc ID: %s, Chunks: %d", docID, n),
	}, nil
}

// statusFor maps pipeline errors to an HTTP status and error type.
func statusFor(err error) (int, string) {
	var loadErr *models.LoadError
	switch {
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable, "model_load_error"
	case errors.Is(err, ingest.ErrEmptyDocument), errors.Is(err, extract.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, "invalid_request_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}
