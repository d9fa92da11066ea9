// Package llms bridges the provider-specific LLM clients to the one-shot
// prompt interface the answer pipelines consume.
package llms

import (
	"context"
	"fmt"
	"strings"

	"Muninn/internal/llm"
	"Muninn/internal/models"
	"Muninn/internal/rag/interfaces"
)

// Generator adapts an llm.LLM client to the pipeline's Generate contract:
// one prompt in, the concatenated text parts of the response out.
type Generator struct {
	client llm.LLM
}

var _ interfaces.LLM = (*Generator)(nil)

// NewGenerator creates a new Generator around client.
func NewGenerator(client llm.LLM) *Generator {
	return &Generator{client: client}
}

// Generate sends prompt as a single user turn and returns the response
// text. Non-text parts in the response are ignored.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := &models.GenerateContentRequest{
		Content: []models.Content{
			{
				Parts: []*models.Part{{Text: prompt}},
				Role:  models.SpeakerUser,
			},
		},
		Role: models.SpeakerUser,
	}

	resp, err := g.client.GenerateContent(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("model returned empty response")
	}

	var sb strings.Builder
	for _, content := range resp.Content {
		for _, part := range content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String(), nil
}
