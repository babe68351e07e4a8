package sections

import "strings"

// Set is an insertion-ordered collection of sections keyed by slug.
type Set struct {
	order []string
	index map[string]*entry
}

type entry struct {
	title string
	lines []string
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{index: make(map[string]*entry)}
}

// open registers slug with title unless it already exists; the first
// title seen for a slug is kept.
func (s *Set) open(title, slug string) {
	if _, ok := s.index[slug]; ok {
		return
	}
	s.order = append(s.order, slug)
	s.index[slug] = &entry{title: title}
}

// appendLines merges a body fragment into slug's accumulated lines.
func (s *Set) appendLines(slug string, fragment []string) {
	e, ok := s.index[slug]
	if !ok || len(fragment) == 0 {
		return
	}
	e.lines = mergeLines(e.lines, fragment)
}

// mergeLines appends fragment to body. The first fragment is taken as is.
// Later fragments are skipped when already contained in the body, and
// otherwise contribute only lines the body does not already have.
func mergeLines(body, fragment []string) []string {
	if len(body) == 0 {
		return append([]string(nil), fragment...)
	}
	if strings.Contains(strings.Join(body, "\n"), strings.Join(fragment, "\n")) {
		return body
	}

	have := make(map[string]struct{}, len(body))
	for _, l := range body {
		have[l] = struct{}{}
	}
	for _, l := range fragment {
		if _, dup := have[l]; dup {
			continue
		}
		have[l] = struct{}{}
		body = append(body, l)
	}
	return body
}

// Len reports the number of sections.
func (s *Set) Len() int { return len(s.order) }

// Get returns the section for slug.
func (s *Set) Get(slug string) (Section, bool) {
	e, ok := s.index[slug]
	if !ok {
		return Section{}, false
	}
	return e.section(slug), true
}

// Sections returns all sections in first-appearance order.
func (s *Set) Sections() []Section {
	out := make([]Section, 0, len(s.order))
	for _, slug := range s.order {
		out = append(out, s.index[slug].section(slug))
	}
	return out
}

func (e *entry) section(slug string) Section {
	return Section{Title: e.title, Slug: slug, Body: strings.Join(e.lines, "\n")}
}

// NonEmpty returns a copy without sections whose trimmed body is empty.
func (s *Set) NonEmpty() *Set {
	out := NewSet()
	for _, slug := range s.order {
		e := s.index[slug]
		if strings.TrimSpace(strings.Join(e.lines, "\n")) == "" {
			continue
		}
		out.open(e.title, slug)
		out.appendLines(slug, e.lines)
	}
	return out
}

// Merge combines sets by slug in argument order, applying the same
// skip-if-already-present rule used within a document.
func Merge(sets ...*Set) *Set {
	out := NewSet()
	for _, set := range sets {
		if set == nil {
			continue
		}
		for _, slug := range set.order {
			e := set.index[slug]
			out.open(e.title, slug)
			out.appendLines(slug, e.lines)
		}
	}
	return out.NonEmpty()
}
