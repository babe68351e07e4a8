// Package records assembles parsed sections into embedding-ready cottage
// records with a stable id and a flat string metadata map.
package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/54b3r/cottagebot/internal/docsource"
	"github.com/54b3r/cottagebot/internal/fields"
	"github.com/54b3r/cottagebot/internal/sections"
)

// Reserved metadata keys. A parsed field with one of these names is
// overwritten by the assembler's own value.
const (
	KeyTitle        = "title"
	KeyText         = "text"
	KeyStandardInfo = "standard_info"
	KeySourceDate   = "informationSourceDate"
	KeySlug         = "slug"
)

// Reserved lists every key the assembler owns.
var Reserved = []string{KeyTitle, KeyText, KeyStandardInfo, KeySourceDate, KeySlug}

const (
	// DefaultEntityLabel prefixes the first line of every embedding text.
	DefaultEntityLabel = "Cottage"
	// DefaultIDPrefix is prepended to the slug to form the record id.
	DefaultIDPrefix = "cottage-"
	// StandardInfoHeader introduces the shared standard information block.
	StandardInfoHeader = "Standard information that applies to every cottage:"
)

// Record is one cottage ready for embedding and upsert.
type Record struct {
	ID            string            `json:"id"`
	Slug          string            `json:"slug"`
	Title         string            `json:"title"`
	EmbeddingText string            `json:"embedding_text"`
	Metadata      map[string]string `json:"metadata"`
	// Overridden lists parsed field keys that collided with a reserved key.
	Overridden []string `json:"overridden,omitempty"`
}

// StandardInfo is the corpus-wide block attached to every record.
type StandardInfo string

// BuildStandardInfo formats doc as a header followed by one bullet per line.
func BuildStandardInfo(doc *docsource.Document) StandardInfo {
	var b strings.Builder
	b.WriteString(StandardInfoHeader)
	for _, t := range doc.Texts() {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(t)
	}
	return StandardInfo(b.String())
}

// AssemblyError reports a section that cannot become a record. The caller
// logs it and skips the section.
type AssemblyError struct {
	Slug   string
	Reason string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("records: assemble %q: %s", e.Slug, e.Reason)
}

// Assembler builds records. The zero value is usable and applies the
// package defaults.
type Assembler struct {
	EntityLabel string
	IDPrefix    string
	// Now stamps informationSourceDate; defaults to time.Now.
	Now func() time.Time
}

// Assemble builds the record for one section.
func (a *Assembler) Assemble(sec sections.Section, fs *fields.Set, info StandardInfo) (Record, error) {
	title := strings.TrimSpace(sec.Title)
	if title == "" {
		return Record{}, &AssemblyError{Slug: sec.Slug, Reason: "empty title"}
	}
	if sec.Slug == "" {
		return Record{}, &AssemblyError{Slug: title, Reason: "empty slug"}
	}
	if fs == nil {
		fs = fields.Parse(sec.Body)
	}

	text := a.embeddingText(title, fs)

	meta := fs.Map()
	var overridden []string
	for _, k := range Reserved {
		if _, clash := meta[k]; clash {
			overridden = append(overridden, k)
		}
	}
	meta[KeyTitle] = title
	meta[KeyText] = text
	meta[KeyStandardInfo] = string(info)
	meta[KeySourceDate] = a.now().UTC().Format(time.RFC3339)
	meta[KeySlug] = sec.Slug

	return Record{
		ID:            a.idPrefix() + sec.Slug,
		Slug:          sec.Slug,
		Title:         title,
		EmbeddingText: text,
		Metadata:      meta,
		Overridden:    overridden,
	}, nil
}

func (a *Assembler) embeddingText(title string, fs *fields.Set) string {
	lines := []string{a.entityLabel() + ": " + title}
	for _, f := range fs.Fields() {
		lines = append(lines, fields.PrettyKey(f.Key)+": "+f.Value)
	}
	lines = append(lines, fs.Extra...)
	return strings.Join(lines, "\n")
}

func (a *Assembler) entityLabel() string {
	if a.EntityLabel == "" {
		return DefaultEntityLabel
	}
	return a.EntityLabel
}

func (a *Assembler) idPrefix() string {
	if a.IDPrefix == "" {
		return DefaultIDPrefix
	}
	return a.IDPrefix
}

func (a *Assembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
