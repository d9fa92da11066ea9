package loaders

import (
	"context"
	"strings"
	"unicode/utf8"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
)

// TextLoader handles plain text and markdown files. Both formats are
// unpaged, so the whole file becomes a single page numbered 1.
type TextLoader struct{}

// NewTextLoader creates a new TextLoader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load decodes data as UTF-8 text and returns it as one page. Invalid
// encodings are rejected rather than silently mangled, because offsets
// recorded against corrupted text would misplace every citation.
func (l *TextLoader) Load(ctx context.Context, data []byte, filename string) ([]schema.Page, error) {
	if !utf8.Valid(data) {
		return nil, ragerr.NewValidation("file", "%s is not valid UTF-8 text", filename)
	}
	text := normalizeNewlines(string(data))
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []schema.Page{{Number: 1, Text: text}}, nil
}

// normalizeNewlines collapses Windows and old-Mac line endings to \n so
// chunk character offsets are stable across upload sources.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// compile-time check to ensure TextLoader implements the Loader interface
var _ interfaces.Loader = (*TextLoader)(nil)
