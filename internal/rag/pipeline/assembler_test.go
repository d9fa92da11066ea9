package pipeline

import (
	"strings"
	"testing"

	"Muninn/internal/rag/schema"
)

// newTestAssembler skips the test when the tokenizer data cannot be loaded,
// which happens in fully offline environments on a cold cache.
func newTestAssembler(t *testing.T, budget int) *ContextAssembler {
	t.Helper()
	a, err := NewContextAssembler(budget)
	if err != nil {
		t.Skipf("tokenizer unavailable: %v", err)
	}
	return a
}

func candidate(id string, modality schema.Modality, content string, norm float64) schema.Candidate {
	return schema.Candidate{
		Chunk: &schema.Chunk{
			ID:         id,
			DocumentID: "doc-1",
			Modality:   modality,
			Content:    content,
		},
		Norm: norm,
	}
}

func TestNewContextAssemblerValidation(t *testing.T) {
	if _, err := NewContextAssembler(0); err == nil {
		t.Error("expected error for zero budget")
	}
	if _, err := NewContextAssembler(-5); err == nil {
		t.Error("expected error for negative budget")
	}
}

func TestAssembleFormatAndCounts(t *testing.T) {
	a := newTestAssembler(t, 1000)

	got := a.Assemble([]schema.Candidate{
		candidate("c1", schema.ModalityText, "quarterly revenue grew", 1.0),
		candidate("c2", schema.ModalityImage, "chart of revenue by region", 0.8),
		candidate("c3", schema.ModalityAudio, "we expect margins to hold", 0.6),
	})

	want := "[1] quarterly revenue grew\n\n[2] chart of revenue by region\n\n[3] we expect margins to hold"
	if got.Text != want {
		t.Errorf("assembled text mismatch:\ngot  %q\nwant %q", got.Text, want)
	}
	if len(got.Markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(got.Markers))
	}
	for marker, wantID := range map[int]string{1: "c1", 2: "c2", 3: "c3"} {
		if got.Markers[marker].Chunk.ID != wantID {
			t.Errorf("marker %d bound to chunk %s, want %s", marker, got.Markers[marker].Chunk.ID, wantID)
		}
	}
	if got.Used.TextChunks != 1 || got.Used.Images != 1 || got.Used.AudioSegments != 1 {
		t.Errorf("unexpected usage counts: %+v", got.Used)
	}
	if got.Tokens <= 0 || got.Tokens > 1000 {
		t.Errorf("token count %d outside budget", got.Tokens)
	}
	if got.Empty() {
		t.Error("context with three sections reported empty")
	}
}

// TestAssemblePrefixStop checks that packing stops at the first oversized
// candidate instead of skipping it to fit later smaller ones.
func TestAssemblePrefixStop(t *testing.T) {
	a := newTestAssembler(t, 60)

	huge := strings.Repeat("insurance policy coverage terms ", 100)
	got := a.Assemble([]schema.Candidate{
		candidate("c1", schema.ModalityText, "short first chunk", 1.0),
		candidate("c2", schema.ModalityText, huge, 0.9),
		candidate("c3", schema.ModalityText, "tiny", 0.8),
	})

	if len(got.Markers) != 1 {
		t.Fatalf("expected only the first chunk to fit, got %d markers", len(got.Markers))
	}
	if _, ok := got.Markers[1]; !ok {
		t.Error("first chunk missing from markers")
	}
	if strings.Contains(got.Text, "tiny") {
		t.Error("candidate after the overflow point leaked into the context")
	}
	if got.Tokens > 60 {
		t.Errorf("token count %d exceeds budget", got.Tokens)
	}
}

func TestAssembleFirstCandidateTooBig(t *testing.T) {
	a := newTestAssembler(t, 5)

	got := a.Assemble([]schema.Candidate{
		candidate("c1", schema.ModalityText, strings.Repeat("overly long opening chunk ", 50), 1.0),
	})

	if !got.Empty() {
		t.Error("expected empty context when the top candidate exceeds the budget")
	}
	if got.Text != "" || got.Tokens != 0 {
		t.Errorf("expected zero context, got text %q tokens %d", got.Text, got.Tokens)
	}
}

func TestAssembleNoCandidates(t *testing.T) {
	a := newTestAssembler(t, 100)

	got := a.Assemble(nil)
	if !got.Empty() || got.Text != "" {
		t.Errorf("expected empty context for no candidates, got %+v", got)
	}
}
