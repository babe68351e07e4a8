// Package corpus runs the offline extraction pipeline: load source
// documents, extract and merge cottage sections, parse their fields and
// assemble records. It performs no network calls.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/cottagebot/internal/docsource"
	"github.com/54b3r/cottagebot/internal/fields"
	"github.com/54b3r/cottagebot/internal/logging"
	"github.com/54b3r/cottagebot/internal/records"
	"github.com/54b3r/cottagebot/internal/sections"
)

// Options configures a Build.
type Options struct {
	// Sources are cottage document paths or ** glob patterns.
	Sources []string
	// StandardInfo is the optional path of the shared information document.
	StandardInfo string
	// Classifier overrides the heading rules; sections.Default when nil.
	Classifier *sections.Classifier
	// Assembler overrides record assembly defaults.
	Assembler *records.Assembler
}

// Result is the output of one Build.
type Result struct {
	Records      []records.Record
	StandardInfo records.StandardInfo
	// Documents is the list of cottage documents that were read.
	Documents []string
	// Skipped counts sections that failed assembly.
	Skipped int
}

// ErrNoSources is returned when Options.Sources is empty.
var ErrNoSources = errors.New("corpus: no source documents configured")

// Build loads every source and returns the assembled records in
// first-appearance order. Document read failures abort the build;
// assembly failures are logged and the section skipped.
func Build(ctx context.Context, opts Options) (*Result, error) {
	log := logging.FromContext(ctx)

	if len(opts.Sources) == 0 {
		return nil, ErrNoSources
	}

	paths, err := docsource.Expand(opts.Sources)
	if err != nil {
		return nil, err
	}

	docs, err := docsource.LoadAll(paths)
	if err != nil {
		return nil, err
	}

	var info records.StandardInfo
	if opts.StandardInfo != "" {
		infoDoc, err := docsource.Load(opts.StandardInfo)
		if err != nil {
			return nil, err
		}
		info = records.BuildStandardInfo(infoDoc)
	}

	classifier := opts.Classifier
	if classifier == nil {
		classifier = sections.Default()
	}
	assembler := opts.Assembler
	if assembler == nil {
		assembler = &records.Assembler{}
	}

	set := classifier.ExtractAll(docs)
	log.Info("corpus: sections extracted",
		slog.Int("documents", len(docs)),
		slog.Int("sections", set.Len()),
	)

	res := &Result{StandardInfo: info, Documents: paths}
	for _, sec := range set.Sections() {
		rec, err := Assemble(ctx, assembler, sec, info)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

// Assemble parses one section's fields and builds its record, logging
// duplicate field labels and reserved-key collisions as warnings.
func Assemble(ctx context.Context, a *records.Assembler, sec sections.Section, info records.StandardInfo) (records.Record, error) {
	log := logging.FromContext(ctx)

	fs := fields.Parse(sec.Body)
	if len(fs.Duplicates) > 0 {
		log.Warn("corpus: duplicate field labels, last value kept",
			slog.String("slug", sec.Slug),
			slog.Any("keys", fs.Duplicates),
		)
	}

	rec, err := a.Assemble(sec, fs, info)
	if err != nil {
		log.Warn("corpus: skipping section", slog.String("error", err.Error()))
		return records.Record{}, fmt.Errorf("corpus: %w", err)
	}

	if len(rec.Overridden) > 0 {
		log.Warn("corpus: parsed fields shadowed by reserved metadata keys",
			slog.String("slug", sec.Slug),
			slog.Any("keys", rec.Overridden),
		)
	}

	return rec, nil
}
