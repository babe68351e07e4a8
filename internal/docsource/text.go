package docsource

import (
	"os"
	"strings"
)

func loadText(path string) ([]Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseText(string(data)), nil
}

// parseText splits plain text into lines. A markdown ATX prefix ("# ",
// "## ") marks the line as a heading and is removed.
func parseText(text string) []Line {
	lines := splitLines(text, false)
	for i, l := range lines {
		if !strings.HasPrefix(l.Text, "#") {
			continue
		}
		trimmed := strings.TrimSpace(strings.TrimLeft(l.Text, "#"))
		if trimmed == "" {
			continue
		}
		lines[i] = Line{Text: trimmed, Heading: true}
	}
	return lines
}
