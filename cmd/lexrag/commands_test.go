package main

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/lexrag/internal/answer"
	"github.com/kalambet/lexrag/internal/api"
	"github.com/kalambet/lexrag/internal/config"
	"github.com/kalambet/lexrag/internal/pipeline"
	"github.com/kalambet/lexrag/internal/storage"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /query": `{"summary":"s","key_points":["a"],"guidance":"g","citations":["d1"],"disclaimer":"x"}`,
	})

	resp, err := ts.client().post(ctx, "/query", api.QueryRequest{Question: "q?", Domain: "legal", DocID: "d1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var a answer.Answer
	if err := decodeJSON(resp, &a); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if a.Summary != "s" || a.Citations[0] != "d1" {
		t.Errorf("answer = %+v", a)
	}

	r := ts.requests[0]
	if r.ContentType != "application/json" {
		t.Errorf("content type = %q", r.ContentType)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["question"] != "q?" || body["domain"] != "legal" || body["doc_id"] != "d1" {
		t.Errorf("body = %v", body)
	}
}

func TestUploadMultipart(t *testing.T) {
	var (
		gotDomain, gotReset, gotName string
		gotContent                   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotDomain = r.FormValue("domain")
		gotReset = r.FormValue("reset")
		f, h, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		gotName = h.Filename
		gotContent, _ = io.ReadAll(f)
		w.Write([]byte(`{"doc_id":"d1","chunk_count":2,"message":"ok"}`))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, httpClient: srv.Client()}
	resp, err := c.upload(ctx, "lease.pdf", []byte("%PDF"), "legal", true)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var result api.UploadResponse
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if gotDomain != "legal" || gotReset != "true" || gotName != "lease.pdf" || string(gotContent) != "%PDF" {
		t.Errorf("got domain=%q reset=%q name=%q content=%q", gotDomain, gotReset, gotName, gotContent)
	}
	if result.DocID != "d1" || result.ChunkCount != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestDecodeJSON_ErrorMessage(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if err.Error() != "server returned 404: not found" {
		t.Errorf("err = %q", err)
	}
}

func TestServerUnreachable(t *testing.T) {
	c := &apiClient{baseURL: "http://127.0.0.1:1", httpClient: &http.Client{Timeout: time.Second}}
	_, err := c.get(ctx, "/health")
	if err == nil || !strings.Contains(err.Error(), "lexrag serve") {
		t.Errorf("err = %v", err)
	}
}

func TestWriteAnswer(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	var buf bytes.Buffer
	writeAnswer(&buf, answer.Answer{
		Summary:    "The deposit is refundable.",
		KeyPoints:  []string{"one", "two"},
		Guidance:   "Keep receipts.",
		Disclaimer: pipeline.Disclaimer,
	})
	out := buf.String()

	for _, want := range []string{"Summary\nThe deposit is refundable.", "- one\n- two", "No citations available", pipeline.Disclaimer} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Summary") > strings.Index(out, "Key Points") {
		t.Error("sections out of order")
	}
}

func TestWriteDocuments(t *testing.T) {
	var buf bytes.Buffer
	writeDocuments(&buf, []storage.Document{
		{DocID: "d1", Domain: "legal", Filename: "lease.pdf", ChunkCount: 4, CreatedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)},
	})
	out := buf.String()
	if !strings.HasPrefix(out, "DOC ID") || !strings.Contains(out, "lease.pdf") || !strings.Contains(out, "2025-06-01 09:30") {
		t.Errorf("output = %q", out)
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "hello"); result != "hello" {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorRed, "hello"); !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestDomainModelsSorted(t *testing.T) {
	cfg := config.Config{Domains: config.DomainsConfig{Models: map[string]string{
		"legal":   "m-legal",
		"general": "m-general",
		"tax":     "m-tax",
	}}}
	got := strings.Join(domainModels(cfg), ",")
	if got != "m-general,m-legal,m-tax" {
		t.Errorf("domainModels = %q", got)
	}
}

func TestCountLabel(t *testing.T) {
	if countLabel(3, 100) != "3" || countLabel(100, 100) != "100+" {
		t.Error("countLabel mismatch")
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"}, {"status"}, {"ingest"}, {"ask"}, {"documents"},
		{"models", "load"}, {"models", "pull"}, {"config", "show"}, {"config", "set"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered (err %v)", path, err)
		}
	}
}

func TestIngestCommand_RequiresFile(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ingest"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error when no file is given")
	}
}

// --- end to end through the wired app ---

// fakeOllama serves /api/tags and a hashed bag-of-words /api/embed.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	const dim = 32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"all-minilm:latest"},{"name":"paraphrase-multilingual:latest"}]}`))
		case "/api/embed":
			var req struct {
				Input []string `json:"input"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			out := make([][]float32, len(req.Input))
			for i, text := range req.Input {
				v := make([]float32, dim)
				for _, word := range strings.Fields(strings.ToLower(text)) {
					h := fnv.New32a()
					h.Write([]byte(word))
					v[h.Sum32()%dim]++
				}
				v[0] += 0.01
				out[i] = v
			}
			json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(ollamaURL string) config.Config {
	return config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8000},
		Ollama: config.OllamaConfig{BaseURL: ollamaURL},
		Domains: config.DomainsConfig{Models: map[string]string{
			"general": "all-minilm",
			"legal":   "paraphrase-multilingual",
		}},
		Storage: config.StorageConfig{VectorBackend: config.BackendMemory},
		LLM:     config.LLMConfig{Model: "openai/gpt-oss-20b", Timeout: time.Second},
	}
}

func TestApp_UploadThenQuery(t *testing.T) {
	ollama := fakeOllama(t)
	a, err := newApp(testConfig(ollama.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	h := api.NewHandler(a.deps)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("domain", "legal")
	fw, _ := mw.CreateFormFile("file", "lease.txt")
	fw.Write([]byte("The tenant must give sixty days notice before leaving the apartment."))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var up api.UploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &up); err != nil {
		t.Fatalf("decoding upload: %v", err)
	}
	if up.ChunkCount != 1 {
		t.Errorf("chunk count = %d, want 1", up.ChunkCount)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"question":"How much notice must the tenant give?","domain":"legal","doc_id":"`+up.DocID+`"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("query status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var ans answer.Answer
	if err := json.Unmarshal(rr.Body.Bytes(), &ans); err != nil {
		t.Fatalf("decoding answer: %v", err)
	}
	if ans.Error != answer.MissingKeyMessage {
		t.Errorf("Error = %q, want missing key message", ans.Error)
	}
	if len(ans.Citations) != 1 || ans.Citations[0] != up.DocID {
		t.Errorf("Citations = %v, want [%s]", ans.Citations, up.DocID)
	}
	if ans.Disclaimer != pipeline.Disclaimer {
		t.Errorf("Disclaimer = %q", ans.Disclaimer)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents", nil))
	var docs []storage.Document
	if err := json.Unmarshal(rr.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decoding documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Filename != "lease.txt" || docs[0].Domain != "legal" {
		t.Errorf("documents = %+v", docs)
	}
}
