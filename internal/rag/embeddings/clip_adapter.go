package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
)

// ClipAdapter embeds images and text queries into one shared space through
// a dual-encoder model served over the Hugging Face Inference API. Image
// requests send the raw bytes, query requests send a JSON payload; both
// land in the same vector space so a text query can rank images.
type ClipAdapter struct {
	client  *http.Client
	model   string
	apiKey  string
	baseURL string
	dim     int
}

// NewClipAdapter creates an adapter for the given feature-extraction model.
// baseURL defaults to the public Hugging Face inference endpoint.
func NewClipAdapter(model, apiKey, baseURL string, dim int) *ClipAdapter {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/pipeline/feature-extraction/"
	}
	return &ClipAdapter{
		client:  &http.Client{Timeout: 60 * time.Second},
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		dim:     dim,
	}
}

// EmbedImage sends the raw image bytes to the image tower of the model.
func (a *ClipAdapter) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	contentType := mimetype.Detect(data).String()
	v, err := a.post(ctx, bytes.NewReader(data), contentType)
	if err != nil {
		return nil, &ragerr.EmbeddingError{Modality: string(schema.ModalityImage), BatchIndex: -1, Err: err}
	}
	return a.checkDim(v)
}

// EmbedQuery sends the query text to the text tower of the model.
func (a *ClipAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	v, err := a.post(ctx, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, &ragerr.EmbeddingError{Modality: string(schema.ModalityImage), BatchIndex: -1, Err: err}
	}
	return a.checkDim(v)
}

// Dimensions returns the fixed size of the image modality space.
func (a *ClipAdapter) Dimensions() int { return a.dim }

func (a *ClipAdapter) post(ctx context.Context, body io.Reader, contentType string) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+a.model, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference api returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return decodeVector(raw)
}

// decodeVector accepts both response shapes the feature-extraction
// pipeline produces: a flat vector for single inputs and a one-element
// batch for wrapped inputs.
func decodeVector(raw []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err == nil {
		if len(batch) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		return batch[0], nil
	}
	return nil, fmt.Errorf("unexpected embedding response shape: %s", bytes.TrimSpace(raw))
}

func (a *ClipAdapter) checkDim(v []float32) ([]float32, error) {
	if len(v) != a.dim {
		return nil, &ragerr.EmbeddingError{
			Modality:   string(schema.ModalityImage),
			BatchIndex: -1,
			WantDim:    a.dim,
			GotDim:     len(v),
		}
	}
	return v, nil
}

// compile-time check to ensure ClipAdapter implements the ImageEmbedder interface
var _ interfaces.ImageEmbedder = (*ClipAdapter)(nil)
