// Package embeddings adapts external embedding and transcription models to
// the per-modality embedder contracts used by the ingestion and retrieval
// pipelines. Each adapter pins the dimension of its modality space and
// rejects model output that does not match it.
package embeddings

import (
	"context"

	"Muninn/internal/embedding"
	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
)

// TextAdapter exposes a provider-agnostic embedding client as the text
// modality embedder. Batch calls are atomic: any failing item fails the
// whole call with the item's index, and no partial result is returned.
type TextAdapter struct {
	provider embedding.Embedding
	dim      int
}

// NewTextAdapter wraps provider as a text embedder producing dim-sized
// vectors.
func NewTextAdapter(provider embedding.Embedding, dim int) *TextAdapter {
	return &TextAdapter{provider: provider, dim: dim}
}

// EmbedDocuments embeds texts preserving input order. The i-th vector
// always corresponds to the i-th text.
func (a *TextAdapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := a.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &ragerr.EmbeddingError{Modality: string(schema.ModalityText), BatchIndex: -1, Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &ragerr.EmbeddingError{
			Modality:   string(schema.ModalityText),
			BatchIndex: -1,
			Err:        ragerr.NewValidation("batch", "model returned %d vectors for %d inputs", len(vectors), len(texts)),
		}
	}
	for i, v := range vectors {
		if len(v) != a.dim {
			return nil, &ragerr.EmbeddingError{
				Modality:   string(schema.ModalityText),
				BatchIndex: i,
				WantDim:    a.dim,
				GotDim:     len(v),
			}
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (a *TextAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := a.provider.Embed(ctx, text)
	if err != nil {
		return nil, &ragerr.EmbeddingError{Modality: string(schema.ModalityText), BatchIndex: -1, Err: err}
	}
	if len(v) != a.dim {
		return nil, &ragerr.EmbeddingError{
			Modality:   string(schema.ModalityText),
			BatchIndex: -1,
			WantDim:    a.dim,
			GotDim:     len(v),
		}
	}
	return v, nil
}

// Dimensions returns the fixed size of the text modality space.
func (a *TextAdapter) Dimensions() int { return a.dim }

// compile-time check to ensure TextAdapter implements the TextEmbedder interface
var _ interfaces.TextEmbedder = (*TextAdapter)(nil)
