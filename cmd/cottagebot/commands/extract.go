package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/cottagebot/internal/corpus"
	"github.com/54b3r/cottagebot/internal/logging"
	"github.com/54b3r/cottagebot/internal/records"
)

// NewExtractCmd constructs the `cottagebot extract` command. It runs the
// document pipeline without touching any external service.
func NewExtractCmd() *cobra.Command {
	var cf corpusFlags
	var output string

	cmd := &cobra.Command{
		Use:   "extract [documents...]",
		Short: "Parse cottage documents and print the records as JSON",
		Long: `Read the cottage documents, split them into one section per cottage,
parse each section's "Label: value" lines and print the resulting records
as a JSON array. Nothing is embedded or uploaded; use this to check what
'cottagebot index' would send.

Documents may be .docx, .txt or .md files or ** glob patterns. When no
arguments are given, COTTAGE_DOCS (comma-separated) is used.

Examples:
  cottagebot extract docs/cottages/*.docx
  cottagebot extract --standard-info docs/standard.docx "docs/**/*.docx"
  cottagebot extract -o records.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			res, err := corpus.Build(ctx, cf.options(args))
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("extract: %w", err)
				}
				defer f.Close()
				w = f
			}

			recs := res.Records
			if recs == nil {
				recs = []records.Record{}
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(recs); err != nil {
				return fmt.Errorf("extract: write records: %w", err)
			}

			log.Info("extract complete",
				slog.Int("documents", len(res.Documents)),
				slog.Int("records", len(res.Records)),
				slog.Int("skipped", res.Skipped),
			)
			return nil
		},
	}

	cf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write JSON to this file instead of stdout")

	return cmd
}
