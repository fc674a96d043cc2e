// Package chromem persists the collection on disk with chromem-go.
//
// The persistence directory holds exactly one database. A new collection is
// written to a sibling temporary directory and renamed into place only after
// every chunk has been stored, so a crash mid-build never leaves a directory
// that would later be mistaken for a complete store.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// metaChunkIndex stores Chunk.Index next to the source metadata.
const metaChunkIndex = "chunk_index"

// Config holds configuration for the chromem-go embedded vector database.
type Config struct {
	// PersistDir is the directory holding the database.
	PersistDir string
	// Collection is the collection name.
	Collection string
	// Compress enables gzip compression for stored data.
	Compress bool
}

// Backend implements vectorstore.Backend on a chromem-go persistent DB.
type Backend struct {
	cfg      Config
	embedder domain.EmbeddingProvider
	logger   *zap.Logger
}

// NewBackend creates a backend. embedder is bound to the collection for
// text queries; the application itself always searches by vector.
func NewBackend(cfg Config, embedder domain.EmbeddingProvider, logger *zap.Logger) (*Backend, error) {
	if cfg.PersistDir == "" {
		return nil, errors.New("chromem: persist directory is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("chromem: collection name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{cfg: cfg, embedder: embedder, logger: logger}, nil
}

// Exists reports whether the persistence directory exists and is non-empty.
func (b *Backend) Exists(context.Context) (bool, error) {
	entries, err := os.ReadDir(b.cfg.PersistDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", b.cfg.PersistDir, err)
	}
	return len(entries) > 0, nil
}

// Open loads the persisted database and returns the named collection.
func (b *Backend) Open(context.Context) (domain.VectorStore, error) {
	db, err := chromem.NewPersistentDB(b.cfg.PersistDir, b.cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB at %s: %w", b.cfg.PersistDir, err)
	}
	col := db.GetCollection(b.cfg.Collection, b.embeddingFunc())
	if col == nil {
		return nil, fmt.Errorf("%w: %s in %s", vectorstore.ErrCollectionNotFound, b.cfg.Collection, b.cfg.PersistDir)
	}
	b.logger.Debug("opened chromem collection",
		zap.String("path", b.cfg.PersistDir),
		zap.String("collection", b.cfg.Collection),
		zap.Int("count", col.Count()),
	)
	return &Store{col: col}, nil
}

// Create writes the collection into a temporary directory and renames it onto
// the persistence directory, which must be absent or empty.
func (b *Backend) Create(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.VectorStore, error) {
	dir := filepath.Clean(b.cfg.PersistDir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", parent, err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := os.RemoveAll(tmp); err != nil {
				b.logger.Warn("removing staging directory", zap.String("path", tmp), zap.Error(err))
			}
		}
	}()

	db, err := chromem.NewPersistentDB(tmp, b.cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}
	col, err := db.CreateCollection(b.cfg.Collection, nil, b.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", b.cfg.Collection, err)
	}
	if err := (&Store{col: col}).Upsert(ctx, chunks, vectors); err != nil {
		return nil, err
	}

	if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("replacing %s: %w", dir, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return nil, fmt.Errorf("moving store into %s: %w", dir, err)
	}
	committed = true
	return b.Open(ctx)
}

// Reset removes the persistence directory.
func (b *Backend) Reset(context.Context) error {
	if err := os.RemoveAll(b.cfg.PersistDir); err != nil {
		return fmt.Errorf("removing %s: %w", b.cfg.PersistDir, err)
	}
	return nil
}

// embeddingFunc adapts the provider so chromem never falls back to its own
// default OpenAI client.
func (b *Backend) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if b.embedder == nil {
			return nil, errors.New("chromem: no embedding provider configured")
		}
		return b.embedder.EmbedQuery(ctx, text)
	}
}

// Store is a handle to one chromem collection.
type Store struct {
	col *chromem.Collection
}

// Upsert adds chunks with precomputed vectors. An existing ID is overwritten.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return vectorstore.ErrLengthMismatch
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		meta := c.Metadata.Strings()
		meta[metaChunkIndex] = strconv.Itoa(c.Index)
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  meta,
			Embedding: vectors[i],
		}
	}
	// Concurrency of 1 since the embeddings already exist.
	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Search returns up to topK chunks by decreasing similarity.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	// chromem requires nResults <= document count.
	n := s.col.Count()
	if n == 0 {
		return []domain.SearchResult{}, nil
	}
	if topK > n {
		topK = n
	}
	results, err := s.col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	out := make([]domain.SearchResult, len(results))
	for i, r := range results {
		out[i] = domain.SearchResult{Chunk: chunkFromResult(r), Score: float64(r.Similarity)}
	}
	return out, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count() int { return s.col.Count() }

// Close is a no-op; chromem writes through on every add.
func (s *Store) Close() error { return nil }

func chunkFromResult(r chromem.Result) domain.Chunk {
	meta := make(map[string]string, len(r.Metadata))
	index := 0
	for k, v := range r.Metadata {
		if k == metaChunkIndex {
			index, _ = strconv.Atoi(v)
			continue
		}
		meta[k] = v
	}
	return domain.Chunk{
		ID:       r.ID,
		Index:    index,
		Content:  r.Content,
		Metadata: domain.MetadataFromStrings(meta),
	}
}
