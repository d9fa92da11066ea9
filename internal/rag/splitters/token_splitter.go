package splitters

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
)

// TokenSplitter cuts normalized pages into overlapping token-bounded chunks.
// Consecutive chunks overlap by exactly ChunkOverlap tokens; the final chunk
// of a page may be shorter. Each chunk records the page number and the byte
// offset range it was sliced from, tracked cumulatively during segmentation
// so no re-search of the source text is ever needed.
type TokenSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	tokenizer    *tiktoken.Tiktoken
}

// NewTokenSplitter creates a TokenSplitter over the cl100k_base encoding.
// Requires 0 <= chunkOverlap < chunkSize.
func NewTokenSplitter(chunkSize, chunkOverlap int) (*TokenSplitter, error) {
	if chunkSize <= 0 {
		return nil, ragerr.NewValidation("chunk_size", "must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, ragerr.NewValidation("chunk_overlap", "must satisfy 0 <= overlap < size, got %d", chunkOverlap)
	}
	tke, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &TokenSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		tokenizer:    tke,
	}, nil
}

// Split materializes the full chunk sequence for a document's pages.
// Empty input yields an empty slice, not an error.
func (s *TokenSplitter) Split(ctx context.Context, documentID string, pages []schema.Page) ([]*schema.Chunk, error) {
	var chunks []*schema.Chunk
	it := s.Chunks(documentID, pages)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		chunk, ok := it.Next()
		if !ok {
			break
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Chunks returns a restartable iterator over the chunk sequence. The
// iterator tokenizes one page at a time, so very large documents never hold
// every chunk in memory at once.
func (s *TokenSplitter) Chunks(documentID string, pages []schema.Page) *ChunkIterator {
	return &ChunkIterator{s: s, documentID: documentID, pages: pages}
}

// ChunkIterator walks the chunk sequence of one document. Not safe for
// concurrent use; chunking is inherently sequential because each chunk's
// offsets depend on the cumulative state before it.
type ChunkIterator struct {
	s          *TokenSplitter
	documentID string
	pages      []schema.Page

	pageIdx int
	tokens  []int
	ends    []int // ends[i] = byte offset after the first i tokens of the page
	start   int   // token position where the next chunk begins
	seq     int
	loaded  bool
}

// Reset restarts the iterator from the first page.
func (it *ChunkIterator) Reset() {
	it.pageIdx = 0
	it.tokens = nil
	it.ends = nil
	it.start = 0
	it.seq = 0
	it.loaded = false
}

// Next returns the next chunk, or false when the sequence is exhausted.
func (it *ChunkIterator) Next() (*schema.Chunk, bool) {
	for {
		if !it.loaded {
			if it.pageIdx >= len(it.pages) {
				return nil, false
			}
			it.loadPage(it.pages[it.pageIdx].Text)
		}
		if it.start < len(it.tokens) {
			return it.emit(), true
		}
		// Current page exhausted, move on.
		it.pageIdx++
		it.loaded = false
	}
}

// loadPage tokenizes a page and precomputes the cumulative byte offset of
// every token boundary. cl100k_base tokens are byte spans, so the offset
// after i tokens is the sum of the individual token byte lengths.
func (it *ChunkIterator) loadPage(text string) {
	it.tokens = it.s.tokenizer.Encode(text, nil, nil)
	it.ends = make([]int, len(it.tokens)+1)
	for i, tok := range it.tokens {
		it.ends[i+1] = it.ends[i] + len(it.s.tokenizer.Decode([]int{tok}))
	}
	it.start = 0
	it.loaded = true
}

func (it *ChunkIterator) emit() *schema.Chunk {
	page := it.pages[it.pageIdx]
	start := it.start
	end := start + it.s.ChunkSize
	cut := 0
	if end >= len(it.tokens) {
		end = len(it.tokens)
	} else if b := it.boundaryIn(start, end); b > 0 {
		cut = b
		end = b
	}

	chunk := &schema.Chunk{
		ID:         uuid.New().String(),
		DocumentID: it.documentID,
		Modality:   schema.ModalityText,
		Seq:        it.seq,
		Content:    page.Text[it.ends[start]:it.ends[end]],
		TokenCount: end - start,
		Locator: schema.Locator{
			Page:      page.Number,
			CharStart: it.ends[start],
			CharEnd:   it.ends[end],
		},
	}
	it.seq++

	if cut > 0 {
		// A boundary cut shortened this chunk; the next one still re-reads
		// exactly ChunkOverlap tokens of it.
		it.start = cut - it.s.ChunkOverlap
	} else {
		it.start = start + it.s.ChunkSize - it.s.ChunkOverlap
	}
	return chunk
}

// boundaryIn looks for a sentence boundary inside the overlap tail of a
// prospective chunk [start, end) and returns the token position to cut at,
// or 0 when none exists. A boundary is only usable if cutting there still
// advances the iterator past the overlap, otherwise the sequence would
// stall.
func (it *ChunkIterator) boundaryIn(start, end int) int {
	lo := end - it.s.ChunkOverlap
	if min := start + it.s.ChunkOverlap + 1; lo < min {
		lo = min
	}
	text := it.pages[it.pageIdx].Text
	for b := end - 1; b >= lo; b-- {
		if sentenceEnd(text, it.ends[b]) {
			return b
		}
	}
	return 0
}

// sentenceEnd reports whether the text up to byte offset off closes a
// sentence: its last non-space rune is terminal punctuation and what
// follows, if anything, is whitespace.
func sentenceEnd(text string, off int) bool {
	if off <= 0 || off > len(text) {
		return false
	}
	head := text[:off]
	trimmed := strings.TrimRight(head, " \t\r\n")
	if trimmed == "" {
		return false
	}
	switch r, _ := utf8.DecodeLastRuneInString(trimmed); r {
	case '.', '!', '?', '。', '！', '？':
	default:
		return false
	}
	if len(trimmed) < len(head) || off == len(text) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[off:])
	return unicode.IsSpace(next)
}

// compile-time check to ensure TokenSplitter implements the Splitter interface
var _ interfaces.Splitter = (*TokenSplitter)(nil)
