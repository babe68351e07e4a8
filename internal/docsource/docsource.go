// Package docsource reads cottage source documents into ordered, trimmed
// text lines. Word documents (.docx) are parsed directly from their OOXML
// body; plain text and markdown files are read line by line.
//
// The loader performs no interpretation beyond surfacing a structural hint
// for heading-styled paragraphs. Classifying lines as headings or body text
// is the job of the sections package.
package docsource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Line is a single non-empty, whitespace-trimmed text line from a document.
type Line struct {
	// Text is the trimmed line content.
	Text string
	// Heading is true when the source paragraph carried a heading style
	// (a Word "Heading N"/"Title" paragraph style or a markdown # prefix).
	Heading bool
}

// Document is the ordered line sequence loaded from one source file.
type Document struct {
	// Path is the file the lines were read from.
	Path string
	// Lines holds the document's lines in source order.
	Lines []Line
}

// Texts returns the line texts without structural hints.
func (d *Document) Texts() []string {
	out := make([]string, len(d.Lines))
	for i, l := range d.Lines {
		out[i] = l.Text
	}
	return out
}

// ReadError reports a source document that could not be opened or parsed
// at the format level. It is fatal to an indexing run.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("docsource: read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ErrUnsupportedFormat is wrapped in a ReadError for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Load reads the document at path, choosing a reader by file extension.
func Load(path string) (*Document, error) {
	var (
		lines []Line
		err   error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		lines, err = loadDOCX(path)
	case ".txt", ".text", ".md", ".markdown":
		lines, err = loadText(path)
	default:
		if _, statErr := os.Stat(path); statErr != nil {
			err = statErr
		} else {
			err = ErrUnsupportedFormat
		}
	}
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	return &Document{Path: path, Lines: lines}, nil
}

// LoadAll loads every path in order, stopping at the first failure.
func LoadAll(paths []string) ([]*Document, error) {
	docs := make([]*Document, 0, len(paths))
	for _, p := range paths {
		doc, err := Load(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// splitLines normalises \r\n and \r to \n, splits, trims every line and
// drops the empty ones. heading marks only the first produced line: a
// heading paragraph continued after a line break carries body text.
func splitLines(text string, heading bool) []Line {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []Line
	for _, raw := range strings.Split(text, "\n") {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		out = append(out, Line{Text: t, Heading: heading && len(out) == 0})
	}
	return out
}
