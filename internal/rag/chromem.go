package rag

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
)

// errPrecomputed is returned by the chromem embedding hook: every point
// reaches the store with its vector already computed.
var errPrecomputed = errors.New("chromem: embeddings must be computed before upsert")

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	// Path persists the database to this directory. Empty keeps it in memory.
	Path string

	// Collection is the collection name.
	Collection string

	// Compress gzips persisted documents.
	Compress bool
}

// ChromemStore implements VectorStore on chromem-go, an in-process vector
// database. Useful for local runs without a Qdrant server.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the chromem database and collection.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "cottages"
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, &ServiceError{Service: "chromem", Op: "open " + cfg.Path, Err: err}
		}
	}

	embed := func(context.Context, string) ([]float32, error) { return nil, errPrecomputed }
	col, err := db.GetOrCreateCollection(cfg.Collection, nil, embed)
	if err != nil {
		return nil, &ServiceError{Service: "chromem", Op: "create collection", Err: err}
	}

	return &ChromemStore{db: db, collection: col}, nil
}

// Upsert adds points; chromem replaces documents that share an ID.
func (s *ChromemStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		meta := make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
		content := meta["text"]
		if content == "" {
			content = p.ID
		}
		docs[i] = chromem.Document{
			ID:        p.ID,
			Metadata:  meta,
			Embedding: p.Vector,
			Content:   content,
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return &ServiceError{Service: "chromem", Op: "upsert", Err: err}
	}
	return nil
}

// Search queries by vector. chromem rejects nResults above the collection
// size, so topK is capped at Count.
func (s *ChromemStore) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > count {
		topK = count
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, &ServiceError{Service: "chromem", Op: "search", Err: err}
	}

	raw := make([]MapMatch, len(results))
	for i, r := range results {
		raw[i] = MapMatch{ID: r.ID, Score: r.Similarity, Metadata: r.Metadata}
	}
	return NormalizeAll(raw), nil
}

// Delete removes records by ID.
func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return &ServiceError{Service: "chromem", Op: "delete", Err: err}
	}
	return nil
}

// Count returns the number of stored records.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// Close is a no-op; persistent databases write through on every change.
func (s *ChromemStore) Close() error {
	return nil
}

// String describes the store for logs.
func (s *ChromemStore) String() string {
	return fmt.Sprintf("chromem(%s)", s.collection.Name)
}
