package loaders

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
)

// PdfLoader extracts plain text from PDF files, one Page per PDF page.
// Pages that cannot be parsed (damaged objects, scanned images without a
// text layer) are skipped instead of failing the whole document.
type PdfLoader struct{}

// NewPdfLoader creates a new PdfLoader.
func NewPdfLoader() *PdfLoader {
	return &PdfLoader{}
}

// Load parses the PDF and returns the extracted text of every readable
// page, keeping the original page numbers so citations point at the page
// a reader would open.
func (l *PdfLoader) Load(ctx context.Context, data []byte, filename string) ([]schema.Page, error) {
	readerAt := bytes.NewReader(data)
	f, err := pdf.NewReader(readerAt, int64(readerAt.Len()))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filename, err)
	}

	var pages []schema.Page
	// cache fonts so we don't continually parse charmap
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= f.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := f.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, schema.Page{Number: i, Text: text})
	}
	return pages, nil
}

// compile-time check to ensure PdfLoader implements the Loader interface
var _ interfaces.Loader = (*PdfLoader)(nil)
