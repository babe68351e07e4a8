// Package mcpserver exposes the cottage answer engine as Model Context
// Protocol tools over stdio, so MCP-aware assistants can ask cottage
// questions without going through the HTTP API.
package mcpserver

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/54b3r/cottagebot/internal/answer"
	"github.com/54b3r/cottagebot/internal/rag"
)

// engine is the subset of *answer.Engine the tools call.
type engine interface {
	Ask(ctx context.Context, question string, topK int) (*answer.Answer, error)
	SearchWhere(ctx context.Context, question string, topK int, f rag.Filter) ([]rag.Match, error)
}

// Server wraps an MCP server that exposes the cottage tools.
type Server struct {
	engine engine
	log    *slog.Logger
	mcp    *server.MCPServer
}

// New creates an MCP server bound to the given engine. version is reported
// to clients during initialisation.
func New(e engine, version string, log *slog.Logger) *Server {
	s := &Server{engine: e, log: log}

	s.mcp = server.NewMCPServer(
		"cottagebot",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Use ask_cottages for guest questions about the holiday cottages. Use search_cottages to look up the underlying records."),
	)
	s.mcp.AddTool(askCottagesTool, s.handleAsk)
	s.mcp.AddTool(searchCottagesTool, s.handleSearch)

	return s
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed.
// Stdout carries protocol messages only; logs go to the slog handler.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	s.log.Info("mcp server listening on stdio")
	return stdio.Listen(ctx, in, out)
}
