package loaders

import (
	"context"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
)

// HTMLLoader handles uploaded .html pages by converting the markup to
// Markdown. Scripts, styles and tags disappear while headings, links and
// tables keep a plain-text shape the splitter can chunk like any document.
type HTMLLoader struct{}

// NewHTMLLoader creates a new HTMLLoader.
func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{}
}

// Load converts the HTML body to Markdown and returns it as one page.
func (l *HTMLLoader) Load(ctx context.Context, data []byte, filename string) ([]schema.Page, error) {
	markdown, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return nil, fmt.Errorf("convert html %s: %w", filename, err)
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, nil
	}
	return []schema.Page{{Number: 1, Text: markdown}}, nil
}

// compile-time check to ensure HTMLLoader implements the Loader interface
var _ interfaces.Loader = (*HTMLLoader)(nil)
