// Package service wires retrieval and generation into question answering,
// and builds or loads the index the questions are answered from.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqa/internal/domain"
)

// PromptTemplate is filled with the joined chunk contents and the question.
const PromptTemplate = "Answer ONLY using the context below.\n" +
	"If answer is not in context, say: 'No relevant information found.'\n\n" +
	"Context:\n{context}\n\n" +
	"Question:\n{question}\n\n" +
	"Answer:"

// ContextSeparator sits between consecutive chunks in the prompt context.
const ContextSeparator = "\n\n---\n\n"

// QAService answers questions from retrieved context only.
type QAService struct {
	retriever domain.Retriever
	llm       domain.ChatModel
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures a QAService.
type Option func(*QAService)

// WithTimeout bounds each Answer call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *QAService) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *QAService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewQAService creates the question answering service.
func NewQAService(retriever domain.Retriever, llm domain.ChatModel, opts ...Option) *QAService {
	s := &QAService{retriever: retriever, llm: llm, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer retrieves context, prompts the model and returns its reply with the
// retrieved chunks, unfiltered and in retrieval order.
func (s *QAService) Answer(ctx context.Context, question string) (domain.Answer, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	chunks, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieving context: %w", err)
	}
	prompt := BuildPrompt(chunks, question)
	s.logger.Debug("prompting model", zap.Int("chunks", len(chunks)), zap.Int("prompt_len", len(prompt)))

	reply, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generating answer: %w", err)
	}
	return domain.Answer{Answer: reply, SourceDocuments: chunks}, nil
}

// BuildPrompt fills PromptTemplate. Placeholders inside chunk text or the
// question are left alone.
func BuildPrompt(chunks []domain.Chunk, question string) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	r := strings.NewReplacer(
		"{context}", strings.Join(parts, ContextSeparator),
		"{question}", question,
	)
	return r.Replace(PromptTemplate)
}
