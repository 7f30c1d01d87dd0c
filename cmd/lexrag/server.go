package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/lexrag/internal/answer"
	"github.com/kalambet/lexrag/internal/api"
	"github.com/kalambet/lexrag/internal/config"
	"github.com/kalambet/lexrag/internal/engine"
	"github.com/kalambet/lexrag/internal/extract"
	"github.com/kalambet/lexrag/internal/ingest"
	"github.com/kalambet/lexrag/internal/llm"
	"github.com/kalambet/lexrag/internal/models"
	"github.com/kalambet/lexrag/internal/pipeline"
	"github.com/kalambet/lexrag/internal/retrieval"
	"github.com/kalambet/lexrag/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lexrag server (foreground)",
	Long: `Start the lexrag server in the foreground.

By default the HTTP API is served on server.host:server.port. With --mcp the
MCP tools are served over stdio instead, for use by an MCP client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpMode, _ := cmd.Flags().GetBool("mcp")
		pull, _ := cmd.Flags().GetBool("pull")
		return runServer(mcpMode, pull)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "serve MCP tools over stdio instead of HTTP")
	serveCmd.Flags().Bool("pull", false, "download every configured domain model before serving")
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// app is the fully wired set of components behind both server surfaces.
type app struct {
	store    *storage.Store
	engine   engine.Engine
	registry *models.Registry
	deps     api.Deps
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	eng, err := engine.Detect(engine.DetectConfig{OllamaBaseURL: cfg.Ollama.BaseURL})
	if err != nil {
		return nil, fmt.Errorf("detecting embedding engine: %w", err)
	}

	dataDir := cfg.Storage.DataDir
	if cfg.Storage.VectorBackend == config.BackendMemory {
		dataDir = storage.MemoryDSN
	}
	store, err := storage.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	var vectors retrieval.VectorStore
	switch cfg.Storage.VectorBackend {
	case config.BackendMemory:
		vectors = retrieval.NewMemoryStore(logger)
	default:
		vectors = retrieval.NewSQLiteStore(store.DB(), logger)
	}

	registry := models.NewRegistry(eng, models.Config{
		Models:          cfg.Domains.Models,
		GenerationModel: cfg.LLM.Model,
		Pull:            cfg.Domains.PullMissing,
	}, logger)

	var completer answer.Completer
	client, err := llm.New(llm.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	})
	switch {
	case errors.Is(err, llm.ErrNoAPIKey):
		logger.Warn("LLM API key not set; answers will carry an error message", "env", "GROQ_API_KEY")
	case err != nil:
		store.Close()
		return nil, fmt.Errorf("creating LLM client: %w", err)
	default:
		completer = client
	}

	extractor := extract.New(extract.Options{StrictPDF: cfg.Ingest.StrictPDF}, logger)
	ingester := ingest.NewPipeline(extractor, registry, vectors, store)
	retriever := retrieval.NewRetriever(registry, vectors, logger)
	generator := answer.NewGenerator(completer, nil, logger)
	query := pipeline.NewQuery(registry, retriever, generator, logger)

	return &app{
		store:    store,
		engine:   eng,
		registry: registry,
		deps: api.Deps{
			Domains:   registry,
			Ingester:  ingester,
			Query:     query,
			Documents: store,
		},
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func runServer(mcpMode, pull bool) error {
	fmt.Fprintf(os.Stderr, "lexrag version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	if pull {
		if err := engine.EnsureReady(ctx, a.engine, domainModels(cfg), os.Stderr); err != nil {
			return err
		}
	} else if !a.engine.IsRunning(ctx) {
		slog.Warn("Ollama is not reachable; domain models will fail to load until it is started", "url", cfg.Ollama.BaseURL)
	}

	if mcpMode {
		return serveMCP(ctx, a)
	}
	return serveHTTP(ctx, cfg, a)
}

func serveMCP(ctx context.Context, a *app) error {
	mcpSrv := api.NewMCPServer(a.deps, version)
	stdioSrv := server.NewStdioServer(mcpSrv)
	slog.Info("MCP server started (stdio transport)")
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, cfg config.Config, a *app) error {
	addr := cfg.Addr()
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(a.deps),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "lexrag listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// domainModels lists the configured embedding models in domain order.
func domainModels(cfg config.Config) []string {
	domains := sortedDomains(cfg.Domains.Models)
	out := make([]string, len(domains))
	for i, d := range domains {
		out[i] = cfg.Domains.Models[d]
	}
	return out
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lexrag system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    "http://" + cfg.Addr(),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}

	var health struct {
		Loaded []models.Context `json:"loaded"`
	}
	serverUp := false
	if resp, err := client.get(ctx, "/health"); err != nil {
		printStatus("Server", "stopped")
	} else if err := decodeJSON(resp, &health); err != nil {
		printStatus("Server", "error (%v)", err)
	} else {
		serverUp = true
		printStatus("Server", "running on %s", cfg.Addr())
	}

	eng := engine.NewOllamaEngine(cfg.Ollama.BaseURL)
	ollamaUp := eng.IsRunning(ctx)
	if ollamaUp {
		printStatus("Embeddings", "%s", eng)
	} else {
		printStatus("Embeddings", "%s (not running)", eng)
	}

	for _, d := range sortedDomains(cfg.Domains.Models) {
		label := cfg.Domains.Models[d]
		if ollamaUp && !eng.HasModel(ctx, label) {
			label += " (not pulled)"
		}
		for _, l := range health.Loaded {
			if l.Domain == d {
				label += fmt.Sprintf(" (loaded, dim %d)", l.EmbeddingDim)
			}
		}
		printStatus("Domain "+d, "%s", label)
	}

	printStatus("LLM model", "%s", cfg.LLM.Model)
	if cfg.LLM.APIKey == "" {
		printStatus("LLM key", "not set")
	} else {
		printStatus("LLM key", "set")
	}

	if serverUp {
		if resp, err := client.get(ctx, "/documents?limit=100"); err == nil {
			var docs []storage.Document
			if decodeJSON(resp, &docs) == nil {
				printStatus("Documents", "%s", countLabel(len(docs), 100))
			}
		}
	}

	printStatus("Vector backend", "%s", cfg.Storage.VectorBackend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
