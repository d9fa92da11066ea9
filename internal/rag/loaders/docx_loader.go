package loaders

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/v2/document"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
)

// DocxLoader extracts text from Word (.docx) files. Word documents have no
// fixed pagination before rendering, so the whole body becomes one page.
type DocxLoader struct{}

// NewDocxLoader creates a new DocxLoader.
func NewDocxLoader() *DocxLoader {
	return &DocxLoader{}
}

// Load reads the document body paragraph by paragraph, then appends table
// cell text row by row so tabular content stays retrievable.
func (l *DocxLoader) Load(ctx context.Context, data []byte, filename string) ([]schema.Page, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx %s: %w", filename, err)
	}
	defer doc.Close()

	var sb strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			sb.WriteString(r.Text())
		}
		sb.WriteString("\n")
	}
	for _, t := range doc.Tables() {
		for _, row := range t.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				var cb strings.Builder
				for _, p := range cell.Paragraphs() {
					for _, r := range p.Runs() {
						cb.WriteString(r.Text())
					}
				}
				cells = append(cells, cb.String())
			}
			sb.WriteString(strings.Join(cells, " | "))
			sb.WriteString("\n")
		}
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []schema.Page{{Number: 1, Text: text}}, nil
}

// compile-time check to ensure DocxLoader implements the Loader interface
var _ interfaces.Loader = (*DocxLoader)(nil)
