package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/cottagebot/internal/config"
	"github.com/54b3r/cottagebot/internal/corpus"
	"github.com/54b3r/cottagebot/internal/ingestion"
	"github.com/54b3r/cottagebot/internal/logging"
	"github.com/54b3r/cottagebot/internal/progress"
)

// NewIndexCmd constructs the `cottagebot index` command, which embeds the
// extracted cottage records and upserts them into the vector store.
func NewIndexCmd() *cobra.Command {
	var cf corpusFlags
	var batchSize int
	var remove []string

	cmd := &cobra.Command{
		Use:   "index [documents...]",
		Short: "Embed cottage records and upsert them into the vector store",
		Long: `Extract the cottage records (see 'cottagebot extract'), embed them and
upsert them into the vector store. Re-running overwrites records in place:
each record id is derived from the cottage name.

A record that fails to embed or upsert is retried alone, then skipped and
reported. An embedding whose size does not match the index stops the run.

Environment:
  VECTOR_STORE         qdrant (default) or memory
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: cottages)
  CHROMEM_PATH         Directory for the memory store (default: not persisted)
  EMBEDDING_PROVIDER   ollama, openai or azure (default: MODEL_PROVIDER)
  INDEX_BATCH_SIZE     Records per embed/upsert call (default: 32)

Examples:
  cottagebot index docs/cottages/*.docx --standard-info docs/standard.docx
  cottagebot index --remove cottage-acer-cottage`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			if !cmd.Flags().Changed("batch-size") {
				batchSize = config.Int("INDEX_BATCH_SIZE", ingestion.DefaultBatchSize)
			}

			// Extraction is offline; do it before connecting to anything.
			var res *corpus.Result
			if len(remove) == 0 {
				var err error
				res, err = corpus.Build(ctx, cf.options(args))
				if err != nil {
					return fmt.Errorf("index: %w", err)
				}
				if len(res.Records) == 0 {
					log.Warn("index: no cottage records found", slog.Any("documents", res.Documents))
					return nil
				}
			}

			emb, dims, err := newEmbedder(log)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			vs, _, err := openVectorStore(ctx, log, dims)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer vs.Close()

			pipeline, err := ingestion.NewPipeline(emb, vs, &ingestion.Config{
				BatchSize:  batchSize,
				Dimensions: dims,
			}, progress.New(cmd.ErrOrStderr()))
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			if len(remove) > 0 {
				if err := pipeline.Remove(ctx, remove); err != nil {
					return fmt.Errorf("index: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records\n", len(remove))
				return nil
			}

			summary, err := pipeline.Index(ctx, res.Records)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			if summary.Failed > 0 {
				log.Warn("index: some records were not indexed",
					slog.Int("failed", summary.Failed),
					slog.Any("ids", summary.FailedIDs),
				)
			}
			if summary.Indexed == 0 {
				return fmt.Errorf("index: none of %d records could be indexed", summary.Total)
			}
			return nil
		},
	}

	cf.register(cmd)
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", ingestion.DefaultBatchSize, "Records per embed/upsert call")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "Delete these record ids instead of indexing (repeatable)")

	return cmd
}
