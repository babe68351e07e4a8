package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadRecordID holds the original record id; Qdrant point ids must be
// UUIDs or integers, so the record id is mapped through PointID.
const payloadRecordID = "record_id"

// pointNamespace seeds the UUIDv5 mapping from record ids to point ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/54b3r/cottagebot/records"))

// PointID returns the deterministic Qdrant point UUID for a record id.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

// QdrantConfig addresses one collection on a Qdrant server (gRPC).
type QdrantConfig struct {
	Host       string // default localhost
	Port       int    // default 6334
	Collection string
	VectorSize uint64
	APIKey     string
	UseTLS     bool
	// IndexedFields get a keyword payload index so filtered searches
	// stay fast as the collection grows.
	IndexedFields []string
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	client *qdrant.Client
	cfg    QdrantConfig
}

// NewQdrantStore connects to Qdrant and makes sure the collection exists
// with the configured vector size, creating it (cosine distance) when
// missing. An existing collection with a different size is a
// *DimensionMismatchError.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size is required")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, &ServiceError{Service: "qdrant", Op: "connect", Err: err}
	}

	s := &QdrantStore{client: client, cfg: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return &ServiceError{Service: "qdrant", Op: "collection exists", Err: err}
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
		if err != nil {
			return &ServiceError{Service: "qdrant", Op: "collection info", Err: err}
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && size != s.cfg.VectorSize {
			return &DimensionMismatchError{Want: int(s.cfg.VectorSize), Got: int(size)}
		}
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return &ServiceError{Service: "qdrant", Op: fmt.Sprintf("create collection %q", s.cfg.Collection), Err: err}
	}

	for _, field := range s.cfg.IndexedFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return &ServiceError{Service: "qdrant", Op: "index payload field " + field, Err: err}
		}
	}
	return nil
}

// Upsert writes points with their vectors and string payloads. Re-running
// with the same record ids overwrites in place.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := qdrant.TryValueMap(payloadFor(p))
		if err != nil {
			return fmt.Errorf("qdrant: payload for %s: %w", p.ID, err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return &ServiceError{Service: "qdrant", Op: "upsert", Err: err}
	}
	return nil
}

func payloadFor(p Point) map[string]any {
	payload := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		payload[k] = v
	}
	payload[payloadRecordID] = p.ID
	return payload
}

// Search runs a cosine similarity query and normalises the scored points.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         qdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &ServiceError{Service: "qdrant", Op: "search", Err: err}
	}

	raw := make([]PointMatch, len(results))
	for i, r := range results {
		raw[i] = PointMatch{Point: r}
	}
	return NormalizeAll(raw), nil
}

func qdrantFilter(f Filter) *qdrant.Filter {
	if len(f) == 0 {
		return nil
	}
	conds := make([]*qdrant.Condition, 0, len(f))
	for k, v := range f {
		conds = append(conds, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conds}
}

// Delete removes records by their record ids.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(PointID(id)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return &ServiceError{Service: "qdrant", Op: "delete", Err: err}
	}

	return nil
}

// Ping checks that the Qdrant server answers its health endpoint.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return &ServiceError{Service: "qdrant", Op: "health check", Err: err}
	}
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
