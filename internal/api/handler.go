package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/lexrag/internal/storage"
)

const (
	maxUploadSize       = 32 << 20 // 32MB
	maxRequestBodySize  = 1 << 20  // 1MB
	defaultDocumentList = 50
)

// NewHandler returns the HTTP surface:
//
//	GET  /health
//	POST /domains/{domain}/load
//	POST /documents          multipart: file, domain, reset (required bool)
//	GET  /documents?domain=&limit=
//	POST /query              {"question", "doc_id", "domain"}
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Post("/domains/{domain}/load", handleLoadDomain(deps))
	r.Post("/documents", handleUpload(deps))
	r.Get("/documents", handleListDocuments(deps))
	r.Post("/query", handleQuery(deps))

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"domains": deps.Domains.Domains(),
			"loaded":  deps.Domains.Loaded(),
		})
	}
}

func handleLoadDomain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		domain, err := deps.resolveDomain(chi.URLParam(r, "domain"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		dctx, err := deps.Domains.Get(r.Context(), domain)
		if err != nil {
			code, typ := statusFor(err)
			httpError(w, code, typ, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, dctx)
	}
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		domain, err := deps.resolveDomain(r.FormValue("domain"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		raw := r.FormValue("reset")
		if raw == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reset is required (true or false)")
			return
		}
		reset, err := strconv.ParseBool(raw)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid reset value %q", raw)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}

		resp, err := deps.ingest(r.Context(), content, header.Filename, domain, reset)
		if err != nil {
			code, typ := statusFor(err)
			slog.Warn("upload failed", "filename", header.Filename, "domain", domain, "error", err)
			httpError(w, code, typ, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Documents == nil {
			httpError(w, http.StatusNotImplemented, "api_error", "document registry not available")
			return
		}

		domain := strings.TrimSpace(r.URL.Query().Get("domain"))
		limit := defaultDocumentList
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", raw)
				return
			}
			limit = n
		}

		docs, err := deps.Documents.ListDocuments(domain, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []storage.Document{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		domain, err := deps.resolveDomain(req.Domain)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		a, err := deps.Query.Answer(r.Context(), domain, req.Question, req.DocID)
		if err != nil {
			code, typ := statusFor(err)
			slog.Warn("query failed", "domain", domain, "error", err)
			httpError(w, code, typ, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
