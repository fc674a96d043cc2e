package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

func chunk(id, content string) domain.Chunk {
	return domain.Chunk{ID: id, Content: content, Metadata: domain.Metadata{domain.MetaSource: id + ".txt"}}
}

func TestStorage_SearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Upsert(ctx,
		[]domain.Chunk{chunk("a", "alpha"), chunk("b", "beta"), chunk("c", "gamma")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	))

	results, err := s.Search(ctx, []float32{2, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Chunk.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "gamma", results[1].Chunk.Content)

	all, err := s.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStorage_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk("a", "old")}, [][]float32{{1, 0}}))
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk("a", "new")}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, s.Count())
	results, err := s.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", results[0].Chunk.Content)
}

func TestStorage_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	err := s.Upsert(ctx, []domain.Chunk{chunk("a", "x")}, nil)
	assert.ErrorIs(t, err, vectorstore.ErrLengthMismatch)

	_, err = s.Search(ctx, []float32{1}, 0)
	assert.Error(t, err)

	results, err := s.Search(ctx, []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStorage_ZeroVectorDoesNotPanic(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk("a", "x")}, [][]float32{{0, 0}}))

	results, err := s.Search(ctx, []float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestBackend_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()

	ok, err := b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = b.Open(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)

	store, err := b.Create(ctx, []domain.Chunk{chunk("a", "x")}, [][]float32{{1}})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())

	ok, err = b.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	opened, err := b.Open(ctx)
	require.NoError(t, err)
	assert.Same(t, store, opened)

	require.NoError(t, b.Reset(ctx))
	ok, err = b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
