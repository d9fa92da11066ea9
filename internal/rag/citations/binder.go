// Package citations resolves bracketed markers in generated answers back
// to the chunks that were quoted in the prompt context.
package citations

import (
	"regexp"
	"strconv"
	"unicode/utf8"

	"Muninn/internal/models"
	"Muninn/internal/rag/schema"
)

// markerPattern matches [1]-style context markers. The capture group is
// the marker number.
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// previewRunes bounds the citation content preview.
const previewRunes = 200

// URLResolver turns an image chunk's source document into a URL the
// frontend can render. May return "" when the object has no public
// address.
type URLResolver func(doc *models.Document) string

// Binder builds Citation records for the markers an answer actually cites.
type Binder struct {
	resolveURL URLResolver
}

// NewBinder creates a new Binder. resolveURL may be nil when image chunks
// never occur or URLs are not wanted.
func NewBinder(resolveURL URLResolver) *Binder {
	return &Binder{resolveURL: resolveURL}
}

// Bind scans answer left to right for [n] markers and resolves each
// distinct marker against the assembled context. markers maps marker
// numbers to the candidates quoted in the prompt; docs maps document IDs
// to their metadata rows. A marker citing nothing in the context is
// reported in the second return value rather than silently dropped, since
// a fabricated marker in a served answer is worth surfacing.
func (b *Binder) Bind(
	answer string,
	markers map[int]schema.Candidate,
	docs map[string]*models.Document,
) ([]models.Citation, []int) {
	var (
		citations  []models.Citation
		unresolved []int
		seen       = make(map[int]bool)
	)

	for _, match := range markerPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			// Digits too large for int; nothing in a real context
			// window has such a marker.
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true

		cand, ok := markers[n]
		if !ok || cand.Chunk == nil {
			unresolved = append(unresolved, n)
			continue
		}
		citations = append(citations, b.bindOne(n, cand, docs[cand.Chunk.DocumentID]))
	}
	return citations, unresolved
}

func (b *Binder) bindOne(marker int, cand schema.Candidate, doc *models.Document) models.Citation {
	chunk := cand.Chunk
	cit := models.Citation{
		ID:         marker,
		Type:       string(chunk.Modality),
		Source:     "Unknown",
		DocumentID: chunk.DocumentID,
		Similarity: cand.Norm,
		Content:    preview(chunk.Content),
	}
	if doc != nil {
		cit.Source = doc.Filename
	}

	switch chunk.Modality {
	case schema.ModalityText:
		if chunk.Locator.Page > 0 {
			page := chunk.Locator.Page
			cit.Page = &page
		}
	case schema.ModalityAudio:
		start, end := chunk.Locator.StartSec, chunk.Locator.EndSec
		cit.StartTime = &start
		cit.EndTime = &end
	case schema.ModalityImage:
		if b.resolveURL != nil && doc != nil {
			cit.URL = b.resolveURL(doc)
		}
	}
	return cit
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	return string([]rune(content)[:previewRunes]) + "..."
}
