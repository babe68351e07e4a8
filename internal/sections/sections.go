// Package sections partitions a loaded document into cottage sections.
//
// Extraction runs in two passes. Classify turns every line into a typed
// Token (Heading or Body) using the Classifier rule table; Fold then walks
// the token stream as a small state machine with two states, NoOpenSection
// and AccumulatingSection(slug), grouping body lines under their heading.
// Sections whose titles normalise to the same slug are merged, both within
// a document and across documents.
package sections

import (
	"strings"

	"github.com/54b3r/cottagebot/internal/docsource"
)

// Kind tags a token in the classified stream.
type Kind int

const (
	// Body is a line that belongs to the currently open section.
	Body Kind = iota
	// Heading opens (or reopens) the section named by Title.
	Heading
)

func (k Kind) String() string {
	if k == Heading {
		return "heading"
	}
	return "body"
}

// Token is one classified line.
type Token struct {
	Kind Kind
	// Text is the original line text.
	Text string
	// Title and Slug are set for headings only.
	Title string
	Slug  string
}

// Section is a titled group of body lines.
type Section struct {
	Title string
	Slug  string
	Body  string
}

// Lines returns the body split into its lines.
func (s Section) Lines() []string {
	if s.Body == "" {
		return nil
	}
	return strings.Split(s.Body, "\n")
}

// Classify tokenises a single line.
func (c *Classifier) Classify(line docsource.Line) Token {
	stripped := c.StripPrefix(line.Text)

	accepted := false
	for _, r := range c.Accept {
		if r.Match(line, stripped) {
			accepted = true
			break
		}
	}
	if !accepted {
		return Token{Kind: Body, Text: line.Text}
	}

	for _, r := range c.Reject {
		if r.Match(line, stripped) {
			return Token{Kind: Body, Text: line.Text}
		}
	}

	title := c.NormalizeTitle(stripped)
	slug := Slugify(title)
	if slug == "" {
		return Token{Kind: Body, Text: line.Text}
	}
	return Token{Kind: Heading, Text: line.Text, Title: title, Slug: slug}
}

// Tokenize classifies every line of a document in order.
func (c *Classifier) Tokenize(lines []docsource.Line) []Token {
	out := make([]Token, len(lines))
	for i, l := range lines {
		out[i] = c.Classify(l)
	}
	return out
}

// Extract tokenises and folds one document, dropping empty sections.
func (c *Classifier) Extract(doc *docsource.Document) *Set {
	return Fold(c.Tokenize(doc.Lines)).NonEmpty()
}

// Extract runs the default classifier over doc.
func Extract(doc *docsource.Document) *Set {
	return Default().Extract(doc)
}

// ExtractAll extracts every document and merges the results by slug in
// document order.
func (c *Classifier) ExtractAll(docs []*docsource.Document) *Set {
	sets := make([]*Set, len(docs))
	for i, d := range docs {
		sets[i] = c.Extract(d)
	}
	return Merge(sets...)
}
