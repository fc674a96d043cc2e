package loader

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts plain text page by page with ledongthuc/pdf.
type PDFExtractor struct{}

// NewPDFExtractor returns the default PDF backend.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// ExtractPages opens path and returns the text of each page.
func (PDFExtractor) ExtractPages(path string) (pages []string, err error) {
	// The parser panics on some malformed files instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		pages[i-1] = pageText(r.Page(i))
	}
	return pages, nil
}

// pageText returns "" for a page whose text cannot be extracted.
func pageText(p pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
