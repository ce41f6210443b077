package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"cragflow/internal/crag"
	"cragflow/internal/engine"
	"cragflow/internal/index"
	"cragflow/internal/models"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"
)

const maxSearchLimit = 50

// Engine is what the tool handlers call into.
type Engine interface {
	Ask(ctx context.Context, question string) (models.AnswerRun, crag.Result, error)
	QuickAnswer(ctx context.Context, question string) (models.AnswerRun, error)
	Search(ctx context.Context, query string, k int) ([]engine.Hit, error)
	IngestURL(ctx context.Context, rawURL string) (index.Report, error)
}

func New(eng Engine, version string) *server.MCPServer {
	s := server.NewMCPServer("cragflow", version, server.WithToolCapabilities(true))
	s.AddTool(askDocsTool(), handleAskDocs(eng))
	s.AddTool(searchDocsTool(), handleSearchDocs(eng))
	s.AddTool(ingestClickUpTool(), handleIngestClickUp(eng))
	return s
}

// Serve blocks on stdio until the client disconnects.
func Serve(eng Engine, version string) error {
	return server.ServeStdio(New(eng, version))
}

func handleAskDocs(eng Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return textError("Error: question parameter is required"), nil
		}
		var run models.AnswerRun
		if request.GetBool("quick", false) {
			run, err = eng.QuickAnswer(ctx, question)
		} else {
			run, _, err = eng.Ask(ctx, question)
		}
		if err != nil {
			log.Error().Err(err).Msg("ask_docs failed")
			return textError(fmt.Sprintf("Answer error: %v", err)), nil
		}
		return text(formatAnswer(run)), nil
	}
}

func handleSearchDocs(eng Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return textError("Error: query parameter is required"), nil
		}
		limit := request.GetInt("limit", 0)
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}
		hits, err := eng.Search(ctx, query, limit)
		if err != nil {
			log.Error().Err(err).Msg("search_docs failed")
			return textError(fmt.Sprintf("Search error: %v", err)), nil
		}
		return text(formatHits(query, hits)), nil
	}
}

func handleIngestClickUp(eng Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := request.RequireString("url")
		if err != nil || strings.TrimSpace(raw) == "" {
			return textError("Error: url parameter is required"), nil
		}
		report, err := eng.IngestURL(ctx, strings.TrimSpace(raw))
		if err != nil {
			log.Error().Err(err).Str("url", raw).Msg("ingest_clickup failed")
			return textError(fmt.Sprintf("Ingest error: %v", err)), nil
		}
		return text(fmt.Sprintf("Ingested %s: %d documents, %d chunks, %d added, %d already indexed, %d duplicates.",
			raw, report.Documents, report.Chunks, report.Added, report.Existing, report.Duplicates)), nil
	}
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(s)}}
}

func textError(s string) *mcp.CallToolResult {
	res := text(s)
	res.IsError = true
	return res
}
