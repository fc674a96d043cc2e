package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docqa/internal/domain"
)

// DocumentLoader reads the source documents.
type DocumentLoader interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// ChunkSplitter splits documents into chunks.
type ChunkSplitter interface {
	Split(docs []domain.Document) ([]domain.Chunk, error)
}

// StoreManager opens or creates the vector store.
type StoreManager interface {
	Exists(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
	BuildOrLoad(ctx context.Context, chunks []domain.Chunk, embedder domain.EmbeddingProvider) (domain.VectorStore, error)
}

// Indexer prepares the vector store before questions are served.
type Indexer struct {
	loader   DocumentLoader
	splitter ChunkSplitter
	manager  StoreManager
	embedder domain.EmbeddingProvider
	logger   *zap.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(loader DocumentLoader, splitter ChunkSplitter, manager StoreManager, embedder domain.EmbeddingProvider, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{loader: loader, splitter: splitter, manager: manager, embedder: embedder, logger: logger}
}

// BuildOrLoad returns a ready store. With forceRebuild the persisted store is
// deleted first. Documents are only read when no populated store exists.
func (ix *Indexer) BuildOrLoad(ctx context.Context, forceRebuild bool) (domain.VectorStore, error) {
	if forceRebuild {
		if err := ix.manager.Reset(ctx); err != nil {
			return nil, err
		}
	}

	exists, err := ix.manager.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking vector store: %w", err)
	}
	if exists {
		return ix.manager.BuildOrLoad(ctx, nil, ix.embedder)
	}

	docs, err := ix.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	chunks, err := ix.splitter.Split(docs)
	if err != nil {
		return nil, fmt.Errorf("splitting documents: %w", err)
	}
	ix.logger.Info("documents split", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))
	return ix.manager.BuildOrLoad(ctx, chunks, ix.embedder)
}
