// Package ingestion implements the indexing driver. It embeds assembled
// cottage records in batches, validates the embedding dimension and upserts
// the results into the vector store. It is invoked by `cottagebot index`.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/cottagebot/internal/logging"
	"github.com/54b3r/cottagebot/internal/progress"
	"github.com/54b3r/cottagebot/internal/rag"
	"github.com/54b3r/cottagebot/internal/records"
)

// DefaultBatchSize is the number of records embedded and upserted per call.
const DefaultBatchSize = 32

// Config holds the configuration for the indexing pipeline.
type Config struct {
	// BatchSize is the number of records per embed/upsert call.
	// Defaults to DefaultBatchSize if zero.
	BatchSize int

	// Dimensions is the vector length the index expects. Every embedding is
	// checked against it; zero disables the check.
	Dimensions int
}

// Summary reports the outcome of an indexing run.
type Summary struct {
	// Total is the number of records handed to the pipeline.
	Total int
	// Indexed is the number of records written to the store.
	Indexed int
	// Failed is the number of records skipped after a failed retry.
	Failed int
	// FailedIDs lists the skipped record ids in input order.
	FailedIDs []string
}

// Pipeline orchestrates the embed → check → upsert flow for a set of records.
type Pipeline struct {
	embedder rag.Embedder
	store    rag.VectorStore
	cfg      Config
	reporter progress.Reporter
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// A nil reporter discards progress events.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config, reporter progress.Reporter) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if reporter == nil {
		reporter = progress.Nop{}
	}

	return &Pipeline{embedder: embedder, store: store, cfg: c, reporter: reporter}, nil
}

// Index embeds and stores recs. Per-record failures (embedding or upsert)
// are retried once individually, then logged and counted; the run
// continues. A dimension mismatch or context cancellation aborts the run
// and is returned alongside the partial summary.
func (p *Pipeline) Index(ctx context.Context, recs []records.Record) (*Summary, error) {
	log := logging.FromContext(ctx)
	sum := &Summary{Total: len(recs)}

	p.reporter.Start(len(recs), "Indexing cottages")
	done := 0

	for start := 0; start < len(recs); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(recs))
		batch := recs[start:end]

		points, failed, err := p.embedBatch(ctx, log, batch)
		if err != nil {
			return sum, err
		}
		sum.fail(failed)

		indexed, failed, err := p.upsertBatch(ctx, log, points)
		if err != nil {
			return sum, err
		}
		sum.Indexed += indexed
		sum.fail(failed)

		for _, r := range batch {
			done++
			p.reporter.Update(done, r.ID)
		}
	}

	p.reporter.Finish(fmt.Sprintf("Indexing complete: %d of %d records indexed", sum.Indexed, sum.Total))
	log.Info("indexing complete",
		slog.Int("total", sum.Total),
		slog.Int("indexed", sum.Indexed),
		slog.Int("failed", sum.Failed),
	)

	return sum, nil
}

func (s *Summary) fail(ids []string) {
	s.Failed += len(ids)
	s.FailedIDs = append(s.FailedIDs, ids...)
}

// embedBatch embeds the batch in one call, falling back to one call per
// record when the batch call fails.
func (p *Pipeline) embedBatch(ctx context.Context, log *slog.Logger, batch []records.Record) ([]rag.Point, []string, error) {
	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.EmbeddingText
	}

	vecs, err := p.embedder.Embed(ctx, texts)
	if err == nil && len(vecs) != len(batch) {
		err = fmt.Errorf("sent %d texts, got %d embeddings", len(batch), len(vecs))
	}
	if err == nil {
		if err := rag.CheckDimensions(vecs, p.cfg.Dimensions); err != nil {
			return nil, nil, fmt.Errorf("ingestion: %w", err)
		}
		points := make([]rag.Point, len(batch))
		for i, r := range batch {
			points[i] = toPoint(r, vecs[i])
		}
		return points, nil, nil
	}
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	log.Warn("ingestion: batch embedding failed, retrying records individually",
		slog.Int("batch_size", len(batch)),
		slog.String("error", err.Error()),
	)

	var (
		points []rag.Point
		failed []string
	)
	for _, r := range batch {
		vecs, err := p.embedder.Embed(ctx, []string{r.EmbeddingText})
		if err == nil && len(vecs) != 1 {
			err = fmt.Errorf("expected 1 embedding, got %d", len(vecs))
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			log.Error("ingestion: embedding failed",
				slog.String("record_id", r.ID),
				slog.String("error", err.Error()),
			)
			failed = append(failed, r.ID)
			continue
		}
		if err := rag.CheckDimensions(vecs, p.cfg.Dimensions); err != nil {
			return nil, nil, fmt.Errorf("ingestion: record %s: %w", r.ID, err)
		}
		points = append(points, toPoint(r, vecs[0]))
	}

	return points, failed, nil
}

// upsertBatch writes the points in one call, falling back to one call per
// point when the batch call fails.
func (p *Pipeline) upsertBatch(ctx context.Context, log *slog.Logger, points []rag.Point) (int, []string, error) {
	if len(points) == 0 {
		return 0, nil, nil
	}

	err := p.store.Upsert(ctx, points)
	if err == nil {
		return len(points), nil, nil
	}
	if ctx.Err() != nil {
		return 0, nil, ctx.Err()
	}
	if rag.IsDimensionMismatch(err) {
		return 0, nil, fmt.Errorf("ingestion: %w", err)
	}

	log.Warn("ingestion: batch upsert failed, retrying records individually",
		slog.Int("batch_size", len(points)),
		slog.String("error", err.Error()),
	)

	indexed := 0
	var failed []string
	for _, pt := range points {
		if err := p.store.Upsert(ctx, []rag.Point{pt}); err != nil {
			if ctx.Err() != nil {
				return indexed, failed, ctx.Err()
			}
			log.Error("ingestion: upsert failed",
				slog.String("record_id", pt.ID),
				slog.String("error", err.Error()),
			)
			failed = append(failed, pt.ID)
			continue
		}
		indexed++
	}

	return indexed, failed, nil
}

// Remove deletes records from the store by id.
func (p *Pipeline) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := p.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("ingestion: delete %d records: %w", len(ids), err)
	}
	logging.FromContext(ctx).Info("records removed", slog.Int("count", len(ids)))
	return nil
}

func toPoint(r records.Record, vec []float32) rag.Point {
	return rag.Point{ID: r.ID, Vector: vec, Metadata: r.Metadata}
}
