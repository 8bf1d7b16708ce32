// Package mcp serves the documentation bot as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

const (
	defaultSearchLimit = 4
	maxSearchLimit     = 50
	previewRunes       = 600
)

// QA is what the tools call into.
type QA interface {
	Run(ctx context.Context, question string) (string, error)
	Search(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error)
}

// NewServer registers ask_documentation and search_documentation.
func NewServer(qa QA, version string, logger *log.Logger) *server.MCPServer {
	logger = logging.OrNop(logger)
	mcpServer := server.NewMCPServer(
		"docqa",
		version,
		server.WithToolCapabilities(true),
	)
	mcpServer.AddTool(createAskTool(), handleAsk(qa, logger))
	mcpServer.AddTool(createSearchTool(), handleSearch(qa, logger))
	return mcpServer
}

// ServeStdio blocks serving the tools on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func createAskTool() mcp.Tool {
	return mcp.NewTool("ask_documentation",
		mcp.WithDescription("Answer a question from the indexed documentation using retrieval and map-reduce summarization"),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural-language question about the documentation"),
		),
	)
}

func createSearchTool() mcp.Tool {
	return mcp.NewTool("search_documentation",
		mcp.WithDescription("Return the documentation chunks most similar to a query, without calling a language model"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum chunks to return (default: %d, max: %d)", defaultSearchLimit, maxSearchLimit)),
		),
	)
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(s),
		},
	}
}

// handleAsk implements the ask_documentation tool
func handleAsk(qa QA, logger *log.Logger) server.ToolHandlerFunc {
	logger = logging.OrNop(logger)
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return textResult("Error: question parameter is required"), nil
		}

		answer, err := qa.Run(ctx, question)
		if err != nil {
			logger.Error().Err(err).Msg("ask_documentation failed")
			return textResult(fmt.Sprintf("Answer error: %v", err)), nil
		}
		return textResult(answer), nil
	}
}

// handleSearch implements the search_documentation tool
func handleSearch(qa QA, logger *log.Logger) server.ToolHandlerFunc {
	logger = logging.OrNop(logger)
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return textResult("Error: query parameter is required"), nil
		}

		limit := request.GetInt("limit", defaultSearchLimit)
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}

		hits, err := qa.Search(ctx, query, limit)
		if err != nil {
			logger.Error().Err(err).Msg("search_documentation failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}
		return textResult(formatSearchResults(query, hits)), nil
	}
}

// formatSearchResults formats search results as markdown
func formatSearchResults(query string, hits []entities.ScoredChunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\" (%d results)\n\n", query, len(hits))

	if len(hits) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, hit := range hits {
		fmt.Fprintf(&sb, "### %d. %s\n", i+1, hit.Chunk.Source)
		fmt.Fprintf(&sb, "**Score:** %.4f\n\n", hit.Score)

		content := []rune(hit.Chunk.Text)
		if len(content) > previewRunes {
			content = append(content[:previewRunes], []rune("...")...)
		}
		sb.WriteString(string(content))
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}
