// Package qdrant stores the collection on a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Payload keys. Source metadata is stored alongside under its own keys.
const (
	payloadContent = "content"
	payloadChunkID = "chunk_id"
	payloadIndex   = "chunk_index"
)

// upsertBatch bounds the number of points sent per request.
const upsertBatch = 256

// pointNamespace derives stable point UUIDs from chunk IDs.
var pointNamespace = uuid.MustParse("6f1c1d2e-7a51-4b7e-9d43-2c3b8e5f0a11")

// Config contains connection details for a Qdrant server.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Backend implements vectorstore.Backend against one Qdrant collection.
type Backend struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

// NewBackend dials the server. The connection is lazy; errors surface on the
// first call.
func NewBackend(cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.Host == "" {
		return nil, errors.New("qdrant: host is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC connection is plaintext", zap.String("host", cfg.Host))
		qcfg.GrpcOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Backend{client: client, collection: cfg.Collection, logger: logger}, nil
}

// Exists reports whether the collection exists and holds at least one point.
func (b *Backend) Exists(ctx context.Context) (bool, error) {
	ok, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", b.collection, err)
	}
	if !ok {
		return false, nil
	}
	n, err := b.count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Open returns a handle to the existing collection.
func (b *Backend) Open(ctx context.Context) (domain.VectorStore, error) {
	ok, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return nil, fmt.Errorf("checking collection %s: %w", b.collection, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, b.collection)
	}
	n, err := b.count(ctx)
	if err != nil {
		return nil, err
	}
	return &Store{client: b.client, collection: b.collection, count: int(n)}, nil
}

// Create (re)creates the collection sized to the first vector and upserts
// every chunk.
func (b *Backend) Create(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.VectorStore, error) {
	if len(chunks) == 0 {
		return nil, vectorstore.ErrNoChunks
	}
	if len(chunks) != len(vectors) {
		return nil, vectorstore.ErrLengthMismatch
	}
	ok, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return nil, fmt.Errorf("checking collection %s: %w", b.collection, err)
	}
	if ok {
		// An empty leftover from an interrupted build.
		if err := b.client.DeleteCollection(ctx, b.collection); err != nil {
			return nil, fmt.Errorf("deleting collection %s: %w", b.collection, err)
		}
	}
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(len(vectors[0])),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", b.collection, err)
	}
	b.logger.Debug("created qdrant collection", zap.String("collection", b.collection), zap.Int("dimension", len(vectors[0])))

	s := &Store{client: b.client, collection: b.collection}
	if err := s.Upsert(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset drops the collection if it exists.
func (b *Backend) Reset(ctx context.Context) error {
	ok, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", b.collection, err)
	}
	if !ok {
		return nil
	}
	if err := b.client.DeleteCollection(ctx, b.collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", b.collection, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) count(ctx context.Context) (uint64, error) {
	n, err := b.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: b.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", b.collection, err)
	}
	return n, nil
}

// Store is a handle to one Qdrant collection. The connection is owned by the
// Backend, so Close does nothing.
type Store struct {
	client     *qdrant.Client
	collection string
	count      int
}

// Upsert writes points in batches and waits for each batch to be applied.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return vectorstore.ErrLengthMismatch
	}
	for start := 0; start < len(chunks); start += upsertBatch {
		end := min(start+upsertBatch, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(chunks[i].ID)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: toPayload(chunks[i]),
			})
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting points %d-%d: %w", start, end, err)
		}
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection, Exact: qdrant.PtrOf(true)})
	if err != nil {
		return fmt.Errorf("counting points in %s: %w", s.collection, err)
	}
	s.count = int(n)
	return nil
}

// Search returns up to topK chunks by decreasing cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.collection, err)
	}
	out := make([]domain.SearchResult, len(points))
	for i, p := range points {
		out[i] = domain.SearchResult{Chunk: fromPayload(p.GetPayload()), Score: float64(p.GetScore())}
	}
	return out, nil
}

// Count returns the point count observed at open or after the last upsert.
func (s *Store) Count() int { return s.count }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// pointID maps a chunk ID to a deterministic UUID, since Qdrant only accepts
// UUIDs or unsigned integers.
func pointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func toPayload(c domain.Chunk) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(c.Metadata)+3)
	for k, v := range c.Metadata {
		switch val := v.(type) {
		case string:
			payload[k] = qdrant.NewValueString(val)
		case int:
			payload[k] = qdrant.NewValueInt(int64(val))
		case int64:
			payload[k] = qdrant.NewValueInt(val)
		case float64:
			payload[k] = qdrant.NewValueDouble(val)
		case bool:
			payload[k] = qdrant.NewValueBool(val)
		default:
			payload[k] = qdrant.NewValueString(fmt.Sprint(val))
		}
	}
	payload[payloadContent] = qdrant.NewValueString(c.Content)
	payload[payloadChunkID] = qdrant.NewValueString(c.ID)
	payload[payloadIndex] = qdrant.NewValueInt(int64(c.Index))
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) domain.Chunk {
	c := domain.Chunk{Metadata: domain.Metadata{}}
	for k, v := range payload {
		switch k {
		case payloadContent:
			c.Content = v.GetStringValue()
			continue
		case payloadChunkID:
			c.ID = v.GetStringValue()
			continue
		case payloadIndex:
			c.Index = int(v.GetIntegerValue())
			continue
		}
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			c.Metadata[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			c.Metadata[k] = int(val.IntegerValue)
		case *qdrant.Value_DoubleValue:
			c.Metadata[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			c.Metadata[k] = val.BoolValue
		}
	}
	return c
}
