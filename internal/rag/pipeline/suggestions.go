package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
	"Muninn/pkg/logger"
)

const (
	// suggestionSampleSize bounds how many chunks seed the prompt when no
	// document is named.
	suggestionSampleSize = 5
	// suggestionSnippetRunes bounds how much of each chunk goes into the
	// prompt.
	suggestionSnippetRunes = 500
	// suggestionCount is how many questions callers get back.
	suggestionCount = 3
	// suggestionMaxRunes rejects rambling lines that are not really
	// questions.
	suggestionMaxRunes = 150
)

const suggestionsPromptTemplate = `Based on the following text snippets from a user's documents, generate 3 short, specific, and interesting questions that a user might ask to learn more about this content.

Text Snippets:
%s

Generate ONLY the 3 questions, one per line. Do not number them. Do not add any other text.`

// SuggestionsPipeline proposes questions a user could ask about the corpus,
// seeded either by one document's chunks or by a deterministic sample of
// the whole store.
type SuggestionsPipeline struct {
	llm        interfaces.LLM
	chunkStore interfaces.ChunkStore
	log        *logger.Logger
}

// NewSuggestionsPipeline creates a new SuggestionsPipeline.
func NewSuggestionsPipeline(llm interfaces.LLM, chunkStore interfaces.ChunkStore, log *logger.Logger) *SuggestionsPipeline {
	return &SuggestionsPipeline{
		llm:        llm,
		chunkStore: chunkStore,
		log:        log,
	}
}

// Run generates up to three suggested questions. With a documentID the
// prompt is seeded from that document's chunks, otherwise from a corpus
// sample. An empty corpus yields no suggestions and no model call.
func (p *SuggestionsPipeline) Run(ctx context.Context, documentID string) ([]string, error) {
	var (
		chunks []*schema.Chunk
		err    error
	)
	if documentID != "" {
		chunks, err = p.chunkStore.ListByDocument(ctx, documentID)
	} else {
		chunks, err = p.chunkStore.Sample(ctx, suggestionSampleSize)
	}
	if err != nil {
		return nil, fmt.Errorf("load chunks for suggestions: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	if len(chunks) > suggestionSampleSize {
		chunks = chunks[:suggestionSampleSize]
	}

	snippets := make([]string, 0, len(chunks))
	for _, c := range chunks {
		snippets = append(snippets, truncateRunes(c.Content, suggestionSnippetRunes))
	}
	prompt := fmt.Sprintf(suggestionsPromptTemplate, strings.Join(snippets, "\n\n"))

	raw, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	questions := parseSuggestions(raw)
	if len(questions) == 0 {
		p.log.Warn(fmt.Sprintf("no usable suggestions in model output: %q", raw))
	}
	return questions, nil
}

// parseSuggestions pulls question lines out of free-form model output.
// Models ignore "one per line, no bullets" often enough that stripping
// bullet dashes and dropping non-questions is required.
func parseSuggestions(raw string) []string {
	var questions []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		q := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "- "))
		if q == "" {
			continue
		}
		if utf8.RuneCountInString(q) >= suggestionMaxRunes || !strings.Contains(q, "?") {
			continue
		}
		questions = append(questions, q)
		if len(questions) == suggestionCount {
			break
		}
	}
	return questions
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
