// Package retriever turns a question into the top-k most similar chunks.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/domain"
)

// DefaultK is the number of chunks returned per question.
const DefaultK = 6

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Retriever embeds the question and searches the store.
type Retriever struct {
	embedder domain.EmbeddingProvider
	store    domain.VectorStore
	k        int
	logger   *zap.Logger
}

// New creates a retriever returning up to k chunks. k <= 0 selects DefaultK.
func New(embedder domain.EmbeddingProvider, store domain.VectorStore, k int, logger *zap.Logger) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, k: k, logger: logger}
}

// K returns the configured result count.
func (r *Retriever) K() int { return r.k }

// Retrieve returns up to k chunks ordered by decreasing similarity.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]domain.Chunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	results, err := r.store.Search(ctx, vec, r.k)
	if err != nil {
		return nil, fmt.Errorf("searching vector store: %w", err)
	}
	chunks := make([]domain.Chunk, len(results))
	for i, res := range results {
		chunks[i] = res.Chunk
	}
	r.logger.Debug("retrieved chunks", zap.Int("count", len(chunks)), zap.Int("k", r.k))
	return chunks, nil
}
