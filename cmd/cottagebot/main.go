// Command cottagebot extracts cottage records from holiday-let documents,
// indexes them into a vector store and answers guest questions about them
// over HTTP, the CLI or MCP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/cottagebot/cmd/cottagebot/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
