package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/cottagebot/internal/config"
	"github.com/54b3r/cottagebot/internal/logging"
	"github.com/54b3r/cottagebot/internal/server"
	"github.com/54b3r/cottagebot/internal/tracing"
	"github.com/54b3r/cottagebot/internal/version"
)

// NewServeCmd constructs the `cottagebot serve` command, which starts the
// HTTP query server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cottagebot HTTP query server",
		Long: `Start the HTTP query server.

Endpoints:
  POST /query    {"question": "...", "top_k": 5} -> {"response": "...", "retrieved": [...]}
  GET  /health   liveness
  GET  /ready    dependency probes (vector store, Ollama)
  GET  /metrics  Prometheus metrics

Examples:
  cottagebot serve
  cottagebot serve --port 9090
  VECTOR_STORE=memory CHROMEM_PATH=./vectors cottagebot serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			if !cmd.Flags().Changed("host") {
				host = config.String("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = config.Int("SERVER_PORT", port)
			}

			flush, traced := tracing.Install(tracing.ConfigFromEnv(version.Version))
			defer flush()
			log.Info("langfuse tracing", slog.Bool("enabled", traced))

			deps, err := buildEngine(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.close()

			srv, err := server.New(deps.engine, &server.Config{
				Host:         host,
				Port:         port,
				Logger:       log,
				Pingers:      deps.pingers,
				QueryTimeout: config.Duration("QUERY_TIMEOUT", 0),
				RateLimit:    config.Float("SERVER_RATE_LIMIT", 0),
				RateBurst:    config.Int("SERVER_RATE_BURST", 0),
				CORSOrigins:  config.List("CORS_ALLOWED_ORIGINS"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (default: $SERVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (default: $SERVER_PORT)")

	return cmd
}
