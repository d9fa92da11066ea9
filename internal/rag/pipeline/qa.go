package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/pkg/logger"
)

const qaPromptTemplate = `You are a precise AI assistant. Answer the question strictly using ONLY the provided context.
If the answer is not found in the context, say "I cannot find the answer in the provided documents."
Do not use outside knowledge. Use citations [1], [2], etc. to reference the sources.

Context:
%s

Question: %s

Answer (include citations):`

// NoContextAnswer is returned without calling the model when retrieval
// produced nothing to ground an answer on.
const NoContextAnswer = "I couldn't find any relevant information to answer your question."

// cannotAnswerPhrases are the ways the model tends to phrase "the context
// does not contain this". Matching any of them means the answer is not
// grounded in the corpus, so citations for it would be misleading.
var cannotAnswerPhrases = []string{
	"cannot find",
	"not found in",
	"no information",
	"don't have information",
	"doesn't contain",
	"not mentioned",
	"not available in",
}

// QAPipeline turns an assembled context plus a question into a grounded
// answer. It only formats the prompt and enforces the generation deadline;
// what the context contains is the assembler's problem.
type QAPipeline struct {
	llm     interfaces.LLM
	timeout time.Duration
	log     *logger.Logger
}

// NewQAPipeline creates a new QAPipeline. A zero timeout disables the
// generation deadline.
func NewQAPipeline(llm interfaces.LLM, timeout time.Duration, log *logger.Logger) *QAPipeline {
	return &QAPipeline{
		llm:     llm,
		timeout: timeout,
		log:     log,
	}
}

// Answer generates a grounded answer for question against contextText.
// A model call that outlives the configured timeout is reported as a
// GenerationTimeoutError rather than a bare context error.
func (p *QAPipeline) Answer(ctx context.Context, question, contextText string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(qaPromptTemplate, contextText, question)
	answer, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		if p.timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return "", &ragerr.GenerationTimeoutError{Timeout: p.timeout}
		}
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// CannotAnswer reports whether answer is a refusal, i.e. the model said
// the context does not cover the question. Callers drop citations and
// context counters for refusals.
func CannotAnswer(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range cannotAnswerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
