package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/54b3r/cottagebot/internal/answer"
	"github.com/54b3r/cottagebot/internal/rag"
	"github.com/54b3r/cottagebot/internal/records"
	"github.com/54b3r/cottagebot/internal/sections"
)

// handleAsk answers a guest question.
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	topK := request.GetInt("top_k", 0)

	ans, err := s.engine.Ask(answer.WithSource(ctx, "mcp"), question, topK)
	if err != nil {
		if answer.IsInvalidInput(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.log.Error("ask_cottages failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAnswer(ans)), nil
}

// handleSearch returns the raw retrieval results.
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	topK := request.GetInt("top_k", 0)

	var filter rag.Filter
	if cottage := request.GetString("cottage", ""); strings.TrimSpace(cottage) != "" {
		filter = rag.Filter{records.KeySlug: sections.Slugify(cottage)}
	}

	matches, err := s.engine.SearchWhere(ctx, query, topK, filter)
	if err != nil {
		if answer.IsInvalidInput(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.log.Error("search_cottages failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(matches) == 0 {
		return mcp.NewToolResultText("No cottage records matched. The collection may not be indexed yet. Run `cottagebot index` first."), nil
	}

	return mcp.NewToolResultText(formatMatches(matches)), nil
}

func formatAnswer(ans *answer.Answer) string {
	var b strings.Builder
	b.WriteString(ans.Response)
	if len(ans.Retrieved) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, r := range ans.Retrieved {
			fmt.Fprintf(&b, "- %s (%s, score %.3f)\n", r.Title, r.ID, r.Score)
		}
	}
	return b.String()
}

func formatMatches(matches []rag.Match) string {
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %d. %s\n", i+1, m.Title())
		fmt.Fprintf(&b, "id: %s  score: %.3f\n\n", m.ID, m.Score)
		b.WriteString(m.Text())
		b.WriteString("\n")
	}
	return b.String()
}
