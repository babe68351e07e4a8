// Package fields splits a section body into "label: value" attributes and
// free-text remainder lines.
package fields

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field is one parsed attribute.
type Field struct {
	Key   string
	Value string
}

// Set is the result of parsing one body.
type Set struct {
	keys   []string
	values map[string]string

	// Extra holds lines that are not attributes, verbatim and in order.
	Extra []string
	// Duplicates lists keys that appeared more than once, in the order the
	// repeat was seen. The last value wins.
	Duplicates []string
}

var (
	bulletRe = regexp.MustCompile(`^[•·▪●◦*\-–—]+\s*`)
	labelRe  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ()&/\-]*$`)
)

// Parse runs a single pass over body. Bullet and dash prefixes are removed
// from every line before matching.
func Parse(body string) *Set {
	s := &Set{values: make(map[string]string)}

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(raw), ""))
		if line == "" {
			continue
		}

		key, value, ok := SplitLine(line)
		if !ok {
			s.Extra = append(s.Extra, line)
			continue
		}
		s.set(key, value)
	}

	return s
}

func (s *Set) set(key, value string) {
	if _, seen := s.values[key]; seen {
		s.Duplicates = append(s.Duplicates, key)
	} else {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// SplitLine matches one line against the attribute shape and returns the
// normalised key and the value after the first separator. A colon between
// two digits is a clock time, not a separator; a hyphen or en dash only
// separates when preceded by whitespace.
func SplitLine(line string) (key, value string, ok bool) {
	for i, r := range line {
		switch {
		case r == ':':
			if digitAt(line, i-1) && digitAt(line, i+1) {
				continue
			}
			return accept(line[:i], line[i+1:])
		case (r == '-' || r == '–') && i > 0 && line[i-1] == ' ':
			return accept(line[:i], line[i+utf8.RuneLen(r):])
		}
	}
	return "", "", false
}

func accept(label, value string) (string, string, bool) {
	label = strings.TrimSpace(label)
	value = strings.TrimSpace(value)
	if label == "" || value == "" || !labelRe.MatchString(label) {
		return "", "", false
	}
	return NormalizeKey(label), value, true
}

func digitAt(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	return s[i] >= '0' && s[i] <= '9'
}

// NormalizeKey lower-cases a label and joins its words with underscores.
func NormalizeKey(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), "_"))
}

// PrettyKey turns a normalised key back into a display label:
// "dog_friendly" becomes "Dog Friendly".
func PrettyKey(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Len returns the number of distinct keys.
func (s *Set) Len() int { return len(s.keys) }

// Get returns the value stored for key.
func (s *Set) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Fields returns the attributes in first-appearance order of their keys.
func (s *Set) Fields() []Field {
	out := make([]Field, len(s.keys))
	for i, k := range s.keys {
		out[i] = Field{Key: k, Value: s.values[k]}
	}
	return out
}

// Map returns a copy of the key/value mapping.
func (s *Set) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
