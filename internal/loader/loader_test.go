package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type fakeExtractor struct {
	pages map[string][]string
	err   error
	calls []string
}

func (f *fakeExtractor) ExtractPages(path string) ([]string, error) {
	f.calls = append(f.calls, filepath.Base(path))
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[filepath.Base(path)], nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_MissingDirectory(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "nope"))

	docs, err := l.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Nil(t, docs)
}

func TestLoad_PathIsAFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")

	_, err := New(filepath.Join(dir, "a.txt")).Load(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestLoad_FiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "c.txt", "third")
	writeFile(t, dir, "a.txt", "first")
	writeFile(t, dir, "notes.md", "ignored")
	writeFile(t, dir, "image.png", "ignored")
	writeFile(t, dir, "B.TXT", "upper case extension")
	writeFile(t, dir, "b.pdf", "not parsed by the fake")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub"), "nested.txt", "not visited")

	pdf := &fakeExtractor{pages: map[string][]string{"b.pdf": {"page zero"}}}
	docs, err := New(dir, WithPageExtractor(pdf)).Load(context.Background())
	require.NoError(t, err)

	var sources []string
	for _, d := range docs {
		sources = append(sources, d.Metadata.Source())
	}
	assert.Equal(t, []string{"B.TXT", "a.txt", "b.pdf", "c.txt"}, sources)
	assert.Equal(t, "first", docs[1].Content)
	assert.Equal(t, domain.Metadata{domain.MetaSource: "a.txt"}, docs[1].Metadata)
	assert.Equal(t, []string{"b.pdf"}, pdf.calls)
}

func TestLoad_PDFPagesAreNumberedFromZero(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "book.pdf", "")
	pdf := &fakeExtractor{pages: map[string][]string{"book.pdf": {"one", "", "three"}}}

	docs, err := New(dir, WithPageExtractor(pdf)).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	for i, d := range docs {
		assert.Equal(t, "book.pdf", d.Metadata.Source())
		page, ok := d.Metadata.PageNumber()
		require.True(t, ok)
		assert.Equal(t, i, page)
	}
	assert.Equal(t, "", docs[1].Content, "unextractable page stays as an empty document")
}

func TestLoad_PDFOpenErrorFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "")
	pdf := &fakeExtractor{err: errors.New("malformed xref")}

	_, err := New(dir, WithPageExtractor(pdf)).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestLoad_EmptyDirectory(t *testing.T) {
	docs, err := New(t.TempDir()).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoad_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(dir).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFExtractor_RealFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF([]string{"Hello page one", "", "Goodbye page three"}), 0o644))

	docs, err := New(dir).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Contains(t, docs[0].Content, "Hello page one")
	assert.Empty(t, docs[1].Content)
	assert.Contains(t, docs[2].Content, "Goodbye page three")
	page, _ := docs[2].Metadata.PageNumber()
	assert.Equal(t, 2, page)
}

func TestPDFExtractor_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text pretending"), 0o644))

	_, err := NewPDFExtractor().ExtractPages(path)
	assert.Error(t, err)
}

// buildPDF writes a minimal uncompressed PDF with one text line per page.
// An empty string produces a page with an empty content stream.
func buildPDF(pages []string) []byte {
	var buf bytes.Buffer
	n := len(pages)
	fontObj := 3 + 2*n
	offsets := make([]int, fontObj+1)

	obj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n))

	for i, text := range pages {
		pageObj, contentObj := 3+2*i, 4+2*i
		obj(pageObj, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontObj, contentObj))
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		obj(contentObj, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}
	obj(fontObj, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", fontObj+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= fontObj; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", fontObj+1, xref)
	return buf.Bytes()
}
