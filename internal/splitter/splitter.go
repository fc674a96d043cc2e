// Package splitter breaks documents into overlapping, bounded-length chunks.
package splitter

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"docqa/internal/domain"
)

// Defaults measured in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// ErrInvalidConfig is returned for impossible size/overlap combinations.
var ErrInvalidConfig = errors.New("invalid splitter configuration")

// Splitter wraps langchaingo's recursive character splitter.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	rc           textsplitter.RecursiveCharacter
}

// New creates a splitter. Overlap must be smaller than size.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d with chunk size %d", ErrInvalidConfig, chunkOverlap, chunkSize)
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		rc: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

// Split splits every document independently and concatenates the chunks in
// input order. Chunk.Index is the position in the returned slice.
func (s *Splitter) Split(documents []domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range documents {
		texts, err := s.splitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", doc.Metadata.Source(), err)
		}
		for _, text := range texts {
			idx := len(chunks)
			chunks = append(chunks, domain.Chunk{
				ID:       chunkID(doc.Metadata, idx),
				Index:    idx,
				Content:  text,
				Metadata: doc.Metadata.Clone(),
			})
		}
	}
	return chunks, nil
}

func (s *Splitter) splitText(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	// Short input is returned untouched; the library would trim whitespace.
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}, nil
	}
	return s.rc.SplitText(text)
}

func chunkID(meta domain.Metadata, idx int) string {
	h := sha1.Sum([]byte(meta.Source()))
	return fmt.Sprintf("%s-%06d", hex.EncodeToString(h[:6]), idx)
}
