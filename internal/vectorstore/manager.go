package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docqa/internal/domain"
)

// Manager opens the persisted collection or builds it from chunks.
type Manager struct {
	backend Backend
	logger  *zap.Logger
}

// NewManager creates a manager over backend.
func NewManager(backend Backend, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{backend: backend, logger: logger}
}

// Exists reports whether the backend already holds a populated collection.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	return m.backend.Exists(ctx)
}

// Reset deletes the persisted collection so the next BuildOrLoad recreates it.
func (m *Manager) Reset(ctx context.Context) error {
	m.logger.Info("deleting persisted vector store")
	if err := m.backend.Reset(ctx); err != nil {
		return fmt.Errorf("resetting vector store: %w", err)
	}
	return nil
}

// BuildOrLoad opens the existing collection when one is persisted; chunks are
// then ignored and nothing is embedded. Otherwise every chunk is embedded and
// the collection is created in one pass.
func (m *Manager) BuildOrLoad(ctx context.Context, chunks []domain.Chunk, embedder domain.EmbeddingProvider) (domain.VectorStore, error) {
	exists, err := m.backend.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking vector store: %w", err)
	}
	if exists {
		m.logger.Info("loading existing vector store")
		if len(chunks) > 0 {
			// No merge path exists; re-indexing requires a rebuild.
			m.logger.Warn("vector store already populated, ignoring new chunks", zap.Int("chunks", len(chunks)))
		}
		store, err := m.backend.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening vector store: %w", err)
		}
		return store, nil
	}

	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	m.logger.Info("creating new vector store", zap.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}

	store, err := m.backend.Create(ctx, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	m.logger.Info("vector store created", zap.Int("count", store.Count()))
	return store, nil
}
