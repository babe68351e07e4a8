// Package rag defines the retrieval boundary of cottagebot: embedding
// text, storing cottage vectors and searching them. Concrete backends
// (Qdrant, chromem-go) satisfy these interfaces so the indexing driver and
// the answer engine never depend on a specific store.
package rag

import (
	"context"
)

// Point is one record as written to a vector store.
type Point struct {
	// ID is the record's stable identifier. Upserting the same ID overwrites.
	ID string

	// Vector is the record's embedding.
	Vector []float32

	// Metadata is flat textual key/value data; no nested structures.
	Metadata map[string]string
}

// Match is one search result in canonical form, whichever backend
// produced it.
type Match struct {
	// ID is the record id that was upserted (not a backend-internal id).
	ID string

	// Score is the similarity score reported by the store.
	Score float32

	// Metadata is the record's stored metadata.
	Metadata map[string]string
}

// Title returns the record title stored under the "title" metadata key.
func (m Match) Title() string {
	return m.Metadata["title"]
}

// Text returns the record's embedding text stored under "text".
func (m Match) Text() string {
	return m.Metadata["text"]
}

// Filter restricts a search to records whose metadata has exactly the
// given values. A nil Filter matches everything.
type Filter map[string]string

// VectorStore persists and searches record embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert writes points, overwriting any existing point with the same ID.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to topK nearest records, best first.
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error)

	// Delete removes records by ID.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vectors.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts; the result is parallel to texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the records most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Match, error)
}

// FilterableRetriever can be narrowed to records whose metadata matches a
// Filter.
type FilterableRetriever interface {
	Retriever
	WithFilter(f Filter) Retriever
}
