package answer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/lexrag/internal/llm"
	"github.com/kalambet/lexrag/internal/models"
)

type fakeCompleter struct {
	reply  string
	err    error
	calls  int
	model  string
	prompt string
	max    int
}

func (f *fakeCompleter) Complete(_ context.Context, model, prompt string, maxTokens int) (llm.Completion, error) {
	f.calls++
	f.model, f.prompt, f.max = model, prompt, maxTokens
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.reply, FinishReason: "stop"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var legalCtx = models.Context{
	Domain:          "legal",
	ModelName:       "paraphrase-multilingual",
	MaxTokens:       1024,
	ChunkSize:       400,
	GenerationModel: "openai/gpt-oss-20b",
}

func TestGenerate_ParsesReply(t *testing.T) {
	fc := &fakeCompleter{reply: "**Summary**: Rent is due on the 1st.\n**Key Points**:\n- a\n- b\n- c\n**Guidance**: Pay early."}
	g := NewGenerator(fc, nil, quietLogger())

	a := g.Generate(context.Background(), "legal", "When is rent due?", []string{"Rent is due on the 1st."}, legalCtx)

	if a.Error != "" {
		t.Fatalf("unexpected error %q", a.Error)
	}
	if a.Summary != "Rent is due on the 1st." {
		t.Errorf("Summary = %q", a.Summary)
	}
	if len(a.KeyPoints) != 3 || a.KeyPoints[2] != "c" {
		t.Errorf("KeyPoints = %v", a.KeyPoints)
	}
	if a.Guidance != "Pay early." {
		t.Errorf("Guidance = %q", a.Guidance)
	}
	if fc.model != "openai/gpt-oss-20b" || fc.max != 1024 {
		t.Errorf("called with model=%q max=%d", fc.model, fc.max)
	}
	if !strings.Contains(fc.prompt, "When is rent due?") || !strings.Contains(fc.prompt, "As a legal expert") {
		t.Errorf("prompt missing question or domain: %q", fc.prompt)
	}
}

func TestGenerate_NoClientMakesNoCall(t *testing.T) {
	g := NewGenerator(nil, nil, quietLogger())

	a := g.Generate(context.Background(), "legal", "q", nil, legalCtx)

	if a.Error != MissingKeyMessage {
		t.Errorf("Error = %q, want %q", a.Error, MissingKeyMessage)
	}
	if a.Summary != MissingKeyMessage {
		t.Errorf("Summary = %q", a.Summary)
	}
	if len(a.KeyPoints) != 1 || a.KeyPoints[0] != NoKeyPoints {
		t.Errorf("KeyPoints = %v", a.KeyPoints)
	}
	if a.Guidance != NoGuidance {
		t.Errorf("Guidance = %q", a.Guidance)
	}
}

func TestGenerate_MissingKeyFromClient(t *testing.T) {
	fc := &fakeCompleter{err: llm.ErrNoAPIKey}
	g := NewGenerator(fc, nil, quietLogger())

	a := g.Generate(context.Background(), "general", "q", nil, legalCtx)

	if a.Error != MissingKeyMessage {
		t.Errorf("Error = %q", a.Error)
	}
}

func TestGenerate_TransportFailure(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("connection refused")}
	g := NewGenerator(fc, nil, quietLogger())

	a := g.Generate(context.Background(), "general", "q", nil, legalCtx)

	if fc.calls != 1 {
		t.Errorf("calls = %d, want exactly 1", fc.calls)
	}
	if a.Error != "LLM request failed: connection refused" {
		t.Errorf("Error = %q", a.Error)
	}
	if a.Summary == "" || len(a.KeyPoints) == 0 || a.Guidance == "" {
		t.Errorf("fallbacks not applied: %+v", a)
	}
}

func TestGenerate_UnstructuredReplyFallsBack(t *testing.T) {
	fc := &fakeCompleter{reply: "I cannot help with that."}
	g := NewGenerator(fc, nil, quietLogger())

	a := g.Generate(context.Background(), "general", "q", nil, legalCtx)

	if a.Error != "" {
		t.Errorf("Error = %q, want empty", a.Error)
	}
	if a.Summary != "I cannot help with that." {
		t.Errorf("Summary = %q", a.Summary)
	}
	if a.KeyPoints[0] != NoKeyPoints || a.Guidance != NoGuidance {
		t.Errorf("fallbacks = %v / %q", a.KeyPoints, a.Guidance)
	}
}

func TestGenerate_OverHTTP(t *testing.T) {
	var gotMaxTokens int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MaxTokens int `json:"max_tokens"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotMaxTokens = body.MaxTokens

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Summary: ok\nKey Points:\n- one\nGuidance: none needed"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer srv.Close()

	client, err := llm.New(llm.Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("llm.New: %v", err)
	}
	g := NewGenerator(client, nil, quietLogger())

	a := g.Generate(context.Background(), "general", "q", []string{"ctx"}, legalCtx)

	if a.Error != "" {
		t.Fatalf("Error = %q", a.Error)
	}
	if a.Summary != "ok" || a.KeyPoints[0] != "one" || a.Guidance != "none needed" {
		t.Errorf("answer = %+v", a)
	}
	if gotMaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want 1024", gotMaxTokens)
	}
}

func TestGenerate_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := llm.New(llm.Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("llm.New: %v", err)
	}
	g := NewGenerator(client, nil, quietLogger())

	a := g.Generate(context.Background(), "general", "q", nil, legalCtx)

	if !strings.HasPrefix(a.Error, "LLM request failed: ") {
		t.Errorf("Error = %q", a.Error)
	}
}
