package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/cottagebot/internal/store"
)

// NewHistoryCmd constructs the `cottagebot history` command, which prints
// the most recent entries of the query log.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently answered questions from the query log",
		Long: `Show the most recent questions recorded in the query log, newest first.

The log is written by serve, ask and mcp when COTTAGEBOT_QUERY_LOG is set
to a path or to "default" (~/.cottagebot/queries.db).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := historyPath()
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("history: no query log at %s (set COTTAGEBOT_QUERY_LOG)", path)
			}

			ql, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer ql.Close()

			entries, err := ql.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			if asJSON {
				if entries == nil {
					entries = []store.Entry{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	return cmd
}

func historyPath() (string, error) {
	switch p := os.Getenv("COTTAGEBOT_QUERY_LOG"); p {
	case "", "default", "disabled":
		return store.DefaultDBPath()
	default:
		return p, nil
	}
}

func printHistory(w io.Writer, entries []store.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No questions logged yet.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  [%s]  %s  (%s)\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Source, e.Question, e.Latency.Round(time.Millisecond))
		switch {
		case e.Err != "":
			fmt.Fprintf(w, "    error: %s\n", e.Err)
		default:
			fmt.Fprintf(w, "    %s\n", firstLine(e.Answer))
		}
		if len(e.RecordIDs) > 0 {
			fmt.Fprintf(w, "    records: %s\n", strings.Join(e.RecordIDs, ", "))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
