package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
	"Muninn/pkg/logger"
)

func newTestLogger() *logger.Logger {
	return logger.New("pipeline-test", "", "")
}

func indexCount(t *testing.T, idx interfaces.VectorIndex) int64 {
	t.Helper()
	n, err := idx.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

// fakeLLM records prompts and returns a canned answer. With block set it
// waits for the context to expire, standing in for a slow model.
type fakeLLM struct {
	mu      sync.Mutex
	answer  string
	err     error
	block   bool
	prompts []string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// fakeSplitter hands back preset chunks stamped with the requested
// document ID, so ingestion tests do not depend on tokenizer data.
type fakeSplitter struct {
	chunks []*schema.Chunk
	err    error
}

func (f *fakeSplitter) Split(ctx context.Context, documentID string, pages []schema.Page) ([]*schema.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*schema.Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		cp := *c
		cp.DocumentID = documentID
		out = append(out, &cp)
	}
	return out, nil
}

// vectorFor returns a deterministic dim-length vector for text not pinned
// in a fake's vector table.
func vectorFor(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32((len(text)+i*3)%7 + 1)
	}
	return v
}

type fakeTextEmbedder struct {
	mu         sync.Mutex
	dim        int
	vectors    map[string][]float32 // pinned vectors by exact text
	err        error
	docCalls   int
	queryCalls int
}

func (f *fakeTextEmbedder) vec(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return vectorFor(text, f.dim)
}

func (f *fakeTextEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.docCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vec(t)
	}
	return out, nil
}

func (f *fakeTextEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queryCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.vec(text), nil
}

func (f *fakeTextEmbedder) Dimensions() int { return f.dim }

type fakeImageEmbedder struct {
	dim        int
	vector     []float32
	err        error
	queryCalls int
}

func (f *fakeImageEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return vectorFor(fmt.Sprintf("image-%d", len(data)), f.dim), nil
}

func (f *fakeImageEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queryCalls++
	if f.err != nil {
		return nil, f.err
	}
	return vectorFor(text, f.dim), nil
}

func (f *fakeImageEmbedder) Dimensions() int { return f.dim }

type fakeAudioEmbedder struct {
	dim        int
	segments   []schema.SegmentVector
	err        error
	queryCalls int
}

func (f *fakeAudioEmbedder) TranscribeAndEmbed(ctx context.Context, data []byte) ([]schema.SegmentVector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

func (f *fakeAudioEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queryCalls++
	if f.err != nil {
		return nil, f.err
	}
	return vectorFor(text, f.dim), nil
}

func (f *fakeAudioEmbedder) Dimensions() int { return f.dim }
