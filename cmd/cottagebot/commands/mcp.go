package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/cottagebot/internal/logging"
	"github.com/54b3r/cottagebot/internal/mcpserver"
	"github.com/54b3r/cottagebot/internal/tracing"
	"github.com/54b3r/cottagebot/internal/version"
)

// NewMCPCmd constructs the `cottagebot mcp` command, which serves the
// answer engine as MCP tools on stdin/stdout.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the answer engine as MCP tools over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing:

  ask_cottages     answer a guest question
  search_cottages  return the matching cottage records

Stdout carries protocol messages only; logs go to stderr.

Example client configuration:
  {"command": "cottagebot", "args": ["mcp"]}`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			flush, _ := tracing.Install(tracing.ConfigFromEnv(version.Version))
			defer flush()

			deps, err := buildEngine(ctx, log)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer deps.close()

			srv := mcpserver.New(deps.engine, version.Version, log)
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
