package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/54b3r/cottagebot/internal/answer"
	"github.com/54b3r/cottagebot/internal/logging"
	"github.com/54b3r/cottagebot/internal/tracing"
	"github.com/54b3r/cottagebot/internal/version"
)

// NewAskCmd constructs the `cottagebot ask` command, which answers a single
// guest question through the same engine as `cottagebot serve`.
func NewAskCmd() *cobra.Command {
	var topK int
	var asJSON bool
	var sources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one guest question",
		Long: `Answer one guest question from the indexed cottage records.

With no argument the question is read from standard input.

Examples:
  cottagebot ask "Which cottages allow dogs?"
  cottagebot ask --top-k 10 --sources "Is there parking at Acer Cottage?"
  echo "What time is check-in?" | cottagebot ask --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				q, err := readQuestion(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				question = q
			}

			flush, _ := tracing.Install(tracing.ConfigFromEnv(version.Version))
			defer flush()

			deps, err := buildEngine(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer deps.close()

			ans, err := deps.engine.Ask(answer.WithSource(ctx, "cli"), question, topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			return printAnswer(cmd.OutOrStdout(), ans, asJSON, sources)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of cottage records to retrieve (default: 5)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON, like POST /query")
	cmd.Flags().BoolVar(&sources, "sources", false, "List the records the answer was based on")

	return cmd
}

// readQuestion reads one line from in, prompting on out when in is a
// terminal.
func readQuestion(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Question: ")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read question: %w", err)
	}
	q := strings.TrimSpace(line)
	if q == "" {
		return "", answer.ErrEmptyQuestion
	}
	return q, nil
}

func printAnswer(w io.Writer, ans *answer.Answer, asJSON, sources bool) error {
	if asJSON {
		if ans.Retrieved == nil {
			ans.Retrieved = []answer.Retrieved{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}

	fmt.Fprintln(w, ans.Response)
	if sources && len(ans.Retrieved) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, r := range ans.Retrieved {
			fmt.Fprintf(w, "  %-30s %s (%.3f)\n", r.Title, r.ID, r.Score)
		}
	}
	return nil
}
