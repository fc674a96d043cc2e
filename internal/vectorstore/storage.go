// Package vectorstore decides whether to open an existing collection or build
// a new one, and defines the backends that persist it.
package vectorstore

import (
	"context"
	"errors"

	"docqa/internal/domain"
)

// Sentinel errors for vector store operations.
var (
	// ErrNoChunks is returned when a store would be created from nothing.
	ErrNoChunks = errors.New("no chunks to index")

	// ErrCollectionNotFound is returned when a populated backend lacks the named collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrLengthMismatch is returned when chunks and vectors do not pair up.
	ErrLengthMismatch = errors.New("chunks and vectors length mismatch")
)

// Backend is a persistence engine for one named collection.
type Backend interface {
	// Exists reports whether a populated collection is already persisted.
	Exists(ctx context.Context) (bool, error)
	// Open returns a handle to the persisted collection without writing.
	Open(ctx context.Context) (domain.VectorStore, error)
	// Create persists chunks with their vectors as a new collection.
	Create(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.VectorStore, error)
	// Reset deletes the persisted collection.
	Reset(ctx context.Context) error
}
