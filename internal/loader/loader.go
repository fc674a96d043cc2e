// Package loader reads the documents the index is built from.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"go.uber.org/zap"

	"docqa/internal/domain"
)

// ErrNotFound is returned when the documents directory does not exist.
var ErrNotFound = errors.New("docs directory not found")

// PageExtractor returns the text of every page of a PDF, in page order.
// A page that cannot be extracted is returned as an empty string.
type PageExtractor interface {
	ExtractPages(path string) ([]string, error)
}

// Loader reads .txt and .pdf files from a single directory.
type Loader struct {
	dir    string
	pdf    PageExtractor
	logger *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithPageExtractor replaces the PDF backend.
func WithPageExtractor(p PageExtractor) Option {
	return func(l *Loader) { l.pdf = p }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a loader for dir.
func New(dir string, opts ...Option) *Loader {
	l := &Loader{dir: dir, pdf: NewPDFExtractor(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns one Document per text file and one per PDF page, with files
// visited in lexicographic order. Subdirectories are not descended.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, l.dir)
		}
		return nil, fmt.Errorf("stat %s: %w", l.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", l.dir)
	}

	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", l.dir, err)
	}

	var documents []domain.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(l.dir, name)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt":
			doc, err := loadText(ctx, path, name)
			if err != nil {
				return nil, err
			}
			documents = append(documents, doc)
		case ".pdf":
			pages, err := l.pdf.ExtractPages(path)
			if err != nil {
				return nil, fmt.Errorf("reading pdf %s: %w", name, err)
			}
			for i, text := range pages {
				documents = append(documents, domain.Document{
					Content:  text,
					Metadata: domain.Metadata{domain.MetaSource: name, domain.MetaPageNumber: i},
				})
			}
			l.logger.Debug("loaded pdf", zap.String("source", name), zap.Int("pages", len(pages)))
		default:
			l.logger.Debug("skipping unsupported file", zap.String("source", name))
		}
	}
	return documents, nil
}

func loadText(ctx context.Context, path, name string) (domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading %s: %w", name, err)
	}
	var content string
	if len(docs) > 0 {
		content = docs[0].PageContent
	}
	return domain.Document{
		Content:  content,
		Metadata: domain.Metadata{domain.MetaSource: name},
	}, nil
}
