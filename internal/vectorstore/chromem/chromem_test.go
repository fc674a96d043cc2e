package chromem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

func testChunks() ([]domain.Chunk, [][]float32) {
	chunks := []domain.Chunk{
		{ID: "a-000000", Index: 0, Content: "cats purr", Metadata: domain.Metadata{domain.MetaSource: "cats.txt"}},
		{ID: "b-000001", Index: 1, Content: "dogs bark", Metadata: domain.Metadata{domain.MetaSource: "dogs.pdf", domain.MetaPageNumber: 3}},
		{ID: "c-000002", Index: 2, Content: "fish swim", Metadata: domain.Metadata{domain.MetaSource: "fish.txt"}},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	return chunks, vectors
}

func newBackend(t *testing.T, dir string) *Backend {
	t.Helper()
	b, err := NewBackend(Config{PersistDir: dir, Collection: "books"}, nil, nil)
	require.NoError(t, err)
	return b
}

func TestNewBackend_Validation(t *testing.T) {
	_, err := NewBackend(Config{Collection: "books"}, nil, nil)
	assert.Error(t, err)
	_, err = NewBackend(Config{PersistDir: t.TempDir()}, nil, nil)
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "db")
	b := newBackend(t, dir)
	ctx := context.Background()

	ok, err := b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "missing directory")

	require.NoError(t, os.Mkdir(dir, 0o755))
	ok, err = b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty directory")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), nil, 0o644))
	ok, err = b.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateThenOpen(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "chroma_db")
	ctx := context.Background()
	chunks, vectors := testChunks()

	store, err := newBackend(t, dir).Create(ctx, chunks, vectors)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Count())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging directory must be renamed away")
	assert.Equal(t, "chroma_db", entries[0].Name())

	// A fresh backend sees the persisted data.
	reopened := newBackend(t, dir)
	ok, err := reopened.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	s, err := reopened.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())

	results, err := s.Search(ctx, []float32{0.1, 0.9, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "dogs bark", results[0].Chunk.Content)
	assert.Equal(t, "b-000001", results[0].Chunk.ID)
	assert.Equal(t, 1, results[0].Chunk.Index)
	assert.Equal(t, domain.Metadata{domain.MetaSource: "dogs.pdf", domain.MetaPageNumber: 3}, results[0].Chunk.Metadata)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearch_CapsTopKToCount(t *testing.T) {
	ctx := context.Background()
	chunks, vectors := testChunks()
	store, err := newBackend(t, filepath.Join(t.TempDir(), "db")).Create(ctx, chunks, vectors)
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{1, 0, 0}, 6)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	_, err = store.Search(ctx, []float32{1, 0, 0}, 0)
	assert.Error(t, err)
}

func TestOpen_MissingCollection(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")
	chunks, vectors := testChunks()
	_, err := newBackend(t, dir).Create(ctx, chunks, vectors)
	require.NoError(t, err)

	other, err := NewBackend(Config{PersistDir: dir, Collection: "papers"}, nil, nil)
	require.NoError(t, err)
	_, err = other.Open(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestCreate_FailureLeavesNoDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "db")
	chunks, vectors := testChunks()

	_, err := newBackend(t, dir).Create(context.Background(), chunks, vectors[:2])
	assert.ErrorIs(t, err, vectorstore.ErrLengthMismatch)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")
	b := newBackend(t, dir)
	chunks, vectors := testChunks()
	_, err := b.Create(ctx, chunks, vectors)
	require.NoError(t, err)

	require.NoError(t, b.Reset(ctx))
	ok, err := b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, b.Reset(ctx), "resetting twice is fine")
}
