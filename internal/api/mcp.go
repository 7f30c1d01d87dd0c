package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing model loading, ingestion and
// question answering as tools.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"lexrag",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("lexrag answers questions about uploaded PDF and DOCX documents with a summary, key points, guidance and citations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("load_model",
			mcp.WithDescription("Load the embedding model for a domain and return its context (model name, embedding dimension, chunk size, max tokens)."),
			mcp.WithString("domain", mcp.Description("Domain name, e.g. general or legal"), mcp.Required()),
		),
		mcpLoadModel(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_document",
			mcp.WithDescription("Extract, chunk and embed a document into a domain's collection. Returns the new doc_id."),
			mcp.WithString("filename", mcp.Description("File name; the extension selects the extractor (.pdf, .docx, other as text)"), mcp.Required()),
			mcp.WithString("content", mcp.Description("Base64-encoded file content"), mcp.Required()),
			mcp.WithString("domain", mcp.Description("Domain name (default general)")),
			mcp.WithBoolean("reset", mcp.Description("true clears the domain's collection and document list before ingesting; false appends"), mcp.Required()),
		),
		mcpIngestDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question from the documents ingested into a domain."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("domain", mcp.Description("Domain name (default general)")),
			mcp.WithString("doc_id", mcp.Description("Document the question is about (informational)")),
		),
		mcpAsk(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"lexrag://domains",
			"Domains",
			mcp.WithResourceDescription("Configured domains and the contexts loaded so far"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDomains(deps),
	)

	return s
}

func mcpLoadModel(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("domain")
		if err != nil {
			return mcpError("domain is required"), nil
		}
		domain, err := deps.resolveDomain(raw)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		dctx, err := deps.Domains.Get(ctx, domain)
		if err != nil {
			return mcpError(fmt.Sprintf("Error loading model: %v", err)), nil
		}
		return mcpJSON(dctx)
	}
}

func mcpIngestDocument(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filename, err := req.RequireString("filename")
		if err != nil {
			return mcpError("filename is required"), nil
		}
		encoded, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return mcpError("invalid base64 content"), nil
		}

		domain, err := deps.resolveDomain(req.GetString("domain", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		reset, err := req.RequireBool("reset")
		if err != nil {
			return mcpError("reset is required (true or false)"), nil
		}

		resp, err := deps.ingest(ctx, content, filepath.Base(filename), domain, reset)
		if err != nil {
			return mcpError(fmt.Sprintf("Upload failed: %v", err)), nil
		}
		return mcpJSON(resp)
	}
}

func mcpAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcpError("question is required"), nil
		}

		domain, err := deps.resolveDomain(req.GetString("domain", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		a, err := deps.Query.Answer(ctx, domain, question, req.GetString("doc_id", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("Query failed: %v", err)), nil
		}
		return mcpJSON(a)
	}
}

func mcpResourceDomains(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(map[string]any{
			"domains": deps.Domains.Domains(),
			"loaded":  deps.Domains.Loaded(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal domains: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
