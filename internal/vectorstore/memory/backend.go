// Package memory keeps a collection in process memory. It is used for
// ephemeral runs and as a test backend.
package memory

import (
	"context"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Backend holds at most one collection for the lifetime of the process.
type Backend struct {
	mu    sync.Mutex
	store *Storage
}

// NewBackend returns an empty backend.
func NewBackend() *Backend { return &Backend{} }

// Exists reports whether a non-empty collection has been created.
func (b *Backend) Exists(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store != nil && b.store.Count() > 0, nil
}

// Open returns the collection created earlier in this process.
func (b *Backend) Open(context.Context) (domain.VectorStore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store == nil {
		return nil, vectorstore.ErrCollectionNotFound
	}
	return b.store, nil
}

// Create builds a new collection. It only becomes visible once fully written.
func (b *Backend) Create(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.VectorStore, error) {
	s := NewStorage()
	if err := s.Upsert(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.store = s
	b.mu.Unlock()
	return s, nil
}

// Reset drops the collection.
func (b *Backend) Reset(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store = nil
	return nil
}
