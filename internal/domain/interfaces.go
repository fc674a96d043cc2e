package domain

import "context"

// Document is one unit of loaded text: a whole text file or a single PDF page.
type Document struct {
	Content  string
	Metadata Metadata
}

// Chunk is a bounded-length part of a Document used for indexing.
// Metadata is a copy of the parent document's metadata.
type Chunk struct {
	ID       string
	Index    int
	Content  string
	Metadata Metadata
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Answer is what the orchestrator returns for one question.
type Answer struct {
	Answer          string
	SourceDocuments []Chunk
}

// EmbeddingProvider converts free text into a numeric vector representation.
type EmbeddingProvider interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel generates text for a single prompt.
type ChatModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	Count() int
	Close() error
}

// Retriever returns the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]Chunk, error)
}

// Answerer defines the question answering operation exposed by the application core.
type Answerer interface {
	Answer(ctx context.Context, question string) (Answer, error)
}
