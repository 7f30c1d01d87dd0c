package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/lexrag/internal/answer"
	"github.com/kalambet/lexrag/internal/api"
	"github.com/kalambet/lexrag/internal/config"
	"github.com/kalambet/lexrag/internal/engine"
	"github.com/kalambet/lexrag/internal/models"
	"github.com/kalambet/lexrag/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Upload a document into a domain's collection",
	Long: `Upload a document into a domain's collection.

PDF and DOCX files are parsed; any other file is read as UTF-8 text.

Examples:
  lexrag ingest ./lease.pdf --domain legal
  lexrag ingest ./notes.docx --reset`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		reset, _ := cmd.Flags().GetBool("reset")

		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Processing %s and generating embeddings...", filepath.Base(path))
		resp, err := client.upload(cmd.Context(), filepath.Base(path), content, domain, reset)
		if err != nil {
			return err
		}

		var result api.UploadResponse
		if err := decodeJSON(resp, &result); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		printSuccess("%s", result.Message)
		fmt.Println(result.DocID)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("domain", api.DefaultDomain, "domain collection to ingest into")
	ingestCmd.Flags().Bool("reset", false, "clear the domain's collection before ingesting")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the ingested documents",
	Long: `Ask a question about the documents ingested into a domain.

Examples:
  lexrag ask "What is the notice period?" --domain legal
  lexrag ask "Summarize the termination clause" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		docID, _ := cmd.Flags().GetString("doc-id")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/query", api.QueryRequest{
			Question: strings.Join(args, " "),
			DocID:    docID,
			Domain:   domain,
		})
		if err != nil {
			return err
		}

		var a answer.Answer
		if err := decodeJSON(resp, &a); err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		if asJSON {
			return printJSON(a)
		}
		writeAnswer(os.Stdout, a)
		if a.Error != "" {
			printWarning("Error: %s", a.Error)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("domain", api.DefaultDomain, "domain to query")
	askCmd.Flags().String("doc-id", "", "document the question is about")
	askCmd.Flags().Bool("json", false, "print the answer as JSON")
}

// --- documents ---

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		if domain != "" {
			q.Set("domain", domain)
		}
		q.Set("limit", fmt.Sprintf("%d", limit))

		resp, err := client.get(cmd.Context(), "/documents?"+q.Encode())
		if err != nil {
			return err
		}

		var docs []storage.Document
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("No documents ingested yet.")
			return nil
		}
		writeDocuments(os.Stdout, docs)
		return nil
	},
}

func init() {
	documentsCmd.Flags().String("domain", "", "only list documents of this domain")
	documentsCmd.Flags().Int("limit", 50, "maximum number of documents")
}

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Load or download domain embedding models",
}

var modelsLoadCmd = &cobra.Command{
	Use:   "load <domain>",
	Short: "Load a domain's model in the running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/domains/"+url.PathEscape(args[0])+"/load", nil)
		if err != nil {
			return err
		}

		var dctx models.Context
		if err := decodeJSON(resp, &dctx); err != nil {
			return fmt.Errorf("error loading model: %w", err)
		}

		printSuccess("Model loaded for %s: %s", dctx.Domain, dctx.ModelName)
		printStatus("Embedding dim", "%d", dctx.EmbeddingDim)
		printStatus("Chunk size", "%d words", dctx.ChunkSize)
		printStatus("Max tokens", "%d", dctx.MaxTokens)
		return nil
	},
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download every configured domain model into Ollama",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		eng, err := engine.Detect(engine.DetectConfig{OllamaBaseURL: cfg.Ollama.BaseURL})
		if err != nil {
			return err
		}
		if err := engine.EnsureReady(cmd.Context(), eng, domainModels(cfg), os.Stderr); err != nil {
			return err
		}
		printSuccess("All domain models are available")
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsLoadCmd)
	modelsCmd.AddCommand(modelsPullCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file.\n\nValid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func sortedDomains(m map[string]string) []string {
	domains := make([]string, 0, len(m))
	for d := range m {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
