package rerankers

import (
	"testing"

	"Muninn/internal/rag/schema"
)

func cand(id string, modality schema.Modality, score float32) schema.Candidate {
	return schema.Candidate{
		Chunk: &schema.Chunk{ID: id, Modality: modality},
		Score: score,
	}
}

func ids(candidates []schema.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Chunk.ID
	}
	return out
}

func TestFuseNormalizesPerModality(t *testing.T) {
	f := NewModalityFuser()
	// Text scores live in a much higher raw range than image scores.
	// After per-modality normalization the best image candidate must be
	// able to beat a mid-ranked text candidate.
	groups := map[schema.Modality][]schema.Candidate{
		schema.ModalityText: {
			cand("t-high", schema.ModalityText, 0.95),
			cand("t-mid", schema.ModalityText, 0.90),
			cand("t-low", schema.ModalityText, 0.85),
		},
		schema.ModalityImage: {
			cand("i-high", schema.ModalityImage, 0.30),
			cand("i-low", schema.ModalityImage, 0.10),
		},
	}
	result := f.Fuse(groups, 10)
	if len(result) != 5 {
		t.Fatalf("expected 5 candidates, got %d", len(result))
	}
	// Both modality leaders normalize to 1.0; text wins the tie.
	got := ids(result)
	if got[0] != "t-high" || got[1] != "i-high" {
		t.Errorf("expected modality leaders first (text before image), got %v", got)
	}
	if result[0].Norm != 1.0 || result[1].Norm != 1.0 {
		t.Errorf("expected leaders normalized to 1.0, got %v and %v", result[0].Norm, result[1].Norm)
	}
	if result[len(result)-1].Norm != 0 {
		t.Errorf("expected some candidate at 0.0 after min-max, got %v", result[len(result)-1].Norm)
	}
}

func TestFuseSingleCandidateModality(t *testing.T) {
	f := NewModalityFuser()
	groups := map[schema.Modality][]schema.Candidate{
		schema.ModalityAudio: {cand("a-only", schema.ModalityAudio, 0.42)},
	}
	result := f.Fuse(groups, 5)
	if len(result) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result))
	}
	if result[0].Norm != 1.0 {
		t.Errorf("lone candidate must normalize to 1.0, got %v", result[0].Norm)
	}
}

func TestFuseTieBreaksByModalityThenID(t *testing.T) {
	f := NewModalityFuser()
	groups := map[schema.Modality][]schema.Candidate{
		// Equal raw scores inside each modality all normalize to 1.0.
		schema.ModalityText: {
			cand("t-b", schema.ModalityText, 0.5),
			cand("t-a", schema.ModalityText, 0.5),
		},
		schema.ModalityImage: {cand("i-a", schema.ModalityImage, 0.9)},
		schema.ModalityAudio: {cand("a-a", schema.ModalityAudio, 0.9)},
	}
	result := f.Fuse(groups, 10)
	want := []string{"t-a", "t-b", "i-a", "a-a"}
	got := ids(result)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie-break order wrong: want %v, got %v", want, got)
		}
	}
}

func TestFuseDeterministic(t *testing.T) {
	f := NewModalityFuser()
	build := func() map[schema.Modality][]schema.Candidate {
		return map[schema.Modality][]schema.Candidate{
			schema.ModalityText: {
				cand("t1", schema.ModalityText, 0.8),
				cand("t2", schema.ModalityText, 0.6),
			},
			schema.ModalityImage: {
				cand("i1", schema.ModalityImage, 0.7),
				cand("i2", schema.ModalityImage, 0.2),
			},
			schema.ModalityAudio: {
				cand("a1", schema.ModalityAudio, 0.4),
			},
		}
	}
	first := ids(f.Fuse(build(), 10))
	for run := 0; run < 20; run++ {
		again := ids(f.Fuse(build(), 10))
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("run %d produced different order: %v vs %v", run, again, first)
			}
		}
	}
}

func TestFuseTruncatesToTopK(t *testing.T) {
	f := NewModalityFuser()
	groups := map[schema.Modality][]schema.Candidate{
		schema.ModalityText: {
			cand("t1", schema.ModalityText, 0.9),
			cand("t2", schema.ModalityText, 0.8),
			cand("t3", schema.ModalityText, 0.7),
		},
	}
	result := f.Fuse(groups, 2)
	if len(result) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(result))
	}
	if got := ids(result); got[0] != "t1" || got[1] != "t2" {
		t.Errorf("truncation must keep the best candidates, got %v", got)
	}
}

func TestFuseEmptyAndZeroK(t *testing.T) {
	f := NewModalityFuser()
	if got := f.Fuse(map[schema.Modality][]schema.Candidate{}, 5); len(got) != 0 {
		t.Errorf("empty groups must fuse to empty, got %d", len(got))
	}
	groups := map[schema.Modality][]schema.Candidate{
		schema.ModalityText: {cand("t1", schema.ModalityText, 0.9)},
	}
	if got := f.Fuse(groups, 0); len(got) != 0 {
		t.Errorf("topK 0 must yield empty result, got %d", len(got))
	}
}
