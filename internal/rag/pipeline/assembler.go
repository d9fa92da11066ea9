package pipeline

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"Muninn/internal/models"
	"Muninn/internal/rag/schema"
)

const assemblerEncoding = "cl100k_base"

// AssembledContext is the prompt-ready context window built from a ranked
// candidate list. Markers maps each 1-based context marker to the candidate
// it quotes, so citations emitted against this context can be resolved back
// to their chunks.
type AssembledContext struct {
	Text    string
	Markers map[int]schema.Candidate
	Used    models.ContextUsed
	Tokens  int
}

// Empty reports whether no candidate fit the budget.
func (a AssembledContext) Empty() bool {
	return len(a.Markers) == 0
}

// ContextAssembler packs ranked candidates into a token-budgeted context
// string. It takes a prefix of the ranking: packing stops at the first
// candidate that would overflow the budget, even if a later smaller one
// would still fit. Chunks are never split.
type ContextAssembler struct {
	encoder *tiktoken.Tiktoken
	budget  int

	sepTokens int
}

// NewContextAssembler creates a new ContextAssembler with the given token
// budget.
func NewContextAssembler(maxTokens int) (*ContextAssembler, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("context budget must be positive, got %d", maxTokens)
	}
	enc, err := tiktoken.GetEncoding(assemblerEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", assemblerEncoding, err)
	}
	return &ContextAssembler{
		encoder:   enc,
		budget:    maxTokens,
		sepTokens: len(enc.Encode("\n\n", nil, nil)),
	}, nil
}

// Assemble walks the ranked candidates in order and keeps the longest
// prefix that fits the budget. Each kept candidate becomes one section
// "[i] content" with markers numbered 1..n in rank order; sections are
// joined with blank lines. The section token cost is measured here rather
// than read from Chunk.TokenCount because audio and image chunks carry no
// splitter token count.
func (a *ContextAssembler) Assemble(ranked []schema.Candidate) AssembledContext {
	out := AssembledContext{Markers: make(map[int]schema.Candidate)}
	var sections []string

	for _, cand := range ranked {
		if cand.Chunk == nil {
			continue
		}
		marker := len(sections) + 1
		section := fmt.Sprintf("[%d] %s", marker, cand.Chunk.Content)
		cost := len(a.encoder.Encode(section, nil, nil))
		if len(sections) > 0 {
			cost += a.sepTokens
		}
		if out.Tokens+cost > a.budget {
			break
		}

		sections = append(sections, section)
		out.Markers[marker] = cand
		out.Tokens += cost
		switch cand.Chunk.Modality {
		case schema.ModalityText:
			out.Used.TextChunks++
		case schema.ModalityImage:
			out.Used.Images++
		case schema.ModalityAudio:
			out.Used.AudioSegments++
		}
	}

	out.Text = strings.Join(sections, "\n\n")
	return out
}
