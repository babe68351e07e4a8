// Package commands defines all Cobra CLI commands for the cottagebot binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/cottagebot/internal/audit"
	"github.com/54b3r/cottagebot/internal/config"
	"github.com/54b3r/cottagebot/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cottagebot",
		Short: "Answer guest questions about holiday cottages",
		Long: `cottagebot turns a folder of cottage description documents into a
searchable knowledge base and answers guest questions from it.

  extract   parse the documents and print the cottage records as JSON
  index     embed the records and upsert them into the vector store
  serve     run the HTTP query server
  ask       answer one question from the command line
  mcp       expose the answer engine as MCP tools over stdio

Settings come from environment variables, a .env file in the working
directory, or a YAML config file (~/.cottagebot/config.yaml).
Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is normal.
			_ = godotenv.Load()

			path, err := config.Load(configPath, logging.New())
			if err != nil {
				return err
			}

			// Rebuild so LOG_LEVEL/LOG_FORMAT from the YAML file apply.
			log := logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.cottagebot/config.yaml)")

	root.AddCommand(
		NewExtractCmd(),
		NewIndexCmd(),
		NewServeCmd(),
		NewAskCmd(),
		NewMCPCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
