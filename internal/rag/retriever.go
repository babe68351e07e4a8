package rag

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultTopK is how many records a question retrieves when the caller
// does not say.
const DefaultTopK = 5

// VectorRetriever answers Retrieve by embedding the question and running a
// similarity search. Results come back best first, one per record.
type VectorRetriever struct {
	embedder    Embedder
	store       VectorStore
	dimensions  int
	defaultTopK int
	filter      Filter
}

// NewRetriever pairs an embedder with a store. dimensions is the index
// size the question vector must match (0 skips the check); defaultTopK
// applies when a caller passes topK <= 0.
func NewRetriever(embedder Embedder, store VectorStore, dimensions, defaultTopK int) (*VectorRetriever, error) {
	switch {
	case embedder == nil:
		return nil, errors.New("rag: embedder must not be nil")
	case store == nil:
		return nil, errors.New("rag: store must not be nil")
	}
	return &VectorRetriever{
		embedder:    embedder,
		store:       store,
		dimensions:  dimensions,
		defaultTopK: cmp.Or(max(defaultTopK, 0), DefaultTopK),
	}, nil
}

// WithFilter returns a copy that restricts every search to records whose
// metadata matches f.
func (r *VectorRetriever) WithFilter(f Filter) Retriever {
	cp := *r
	cp.filter = f
	return &cp
}

// Retrieve returns up to topK records for query.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("rag: empty query")
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	switch {
	case err != nil:
		return nil, &ServiceError{Service: "embedder", Op: "embed query", Err: err}
	case len(vecs) == 0:
		return nil, &ServiceError{Service: "embedder", Op: "embed query", Err: errors.New("empty result")}
	}
	if err := CheckDimensions(vecs[:1], r.dimensions); err != nil {
		return nil, err
	}

	matches, err := r.store.Search(ctx, vecs[0], topK, r.filter)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return rankUnique(matches, topK), nil
}

// rankUnique orders matches by descending score, keeps the best hit per
// record id and caps the result at limit.
func rankUnique(matches []Match, limit int) []Match {
	matches = slices.Clone(matches)
	slices.SortStableFunc(matches, func(a, b Match) int { return cmp.Compare(b.Score, a.Score) })

	seen := make(map[string]bool, len(matches))
	out := make([]Match, 0, min(len(matches), limit))
	for _, m := range matches {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out
}
