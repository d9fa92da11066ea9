// Package rerankers orders retrieval candidates. The modality fuser merges
// the per-modality result lists of a hybrid query into one ranking.
package rerankers

import (
	"sort"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
)

// ModalityFuser merges per-modality candidate lists into one ranked list.
// Raw similarity scores are not comparable across embedding spaces, so each
// modality's scores are min-max normalized per query before merging. The
// final order is fully deterministic: normalized score descending, then
// modality priority (text beats image beats audio), then chunk id.
type ModalityFuser struct{}

// NewModalityFuser creates a new ModalityFuser.
func NewModalityFuser() *ModalityFuser {
	return &ModalityFuser{}
}

// Fuse normalizes, merges and truncates the candidate groups. Candidates
// are modified in place: Norm receives the normalized score.
func (f *ModalityFuser) Fuse(groups map[schema.Modality][]schema.Candidate, topK int) []schema.Candidate {
	if topK <= 0 {
		return nil
	}

	var merged []schema.Candidate
	for _, modality := range schema.AllModalities() {
		candidates := groups[modality]
		if len(candidates) == 0 {
			continue
		}
		normalizeGroup(candidates)
		merged = append(merged, candidates...)
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Norm != b.Norm {
			return a.Norm > b.Norm
		}
		if pa, pb := a.Chunk.Modality.Priority(), b.Chunk.Modality.Priority(); pa != pb {
			return pa < pb
		}
		return a.Chunk.ID < b.Chunk.ID
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// normalizeGroup min-max scales one modality's raw scores into [0, 1]. A
// degenerate group where every score is equal (including a single
// candidate) normalizes to 1.0: the modality's best match should compete
// at full strength rather than vanish at zero.
func normalizeGroup(candidates []schema.Candidate) {
	lo, hi := candidates[0].Score, candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score < lo {
			lo = c.Score
		}
		if c.Score > hi {
			hi = c.Score
		}
	}
	if hi == lo {
		for i := range candidates {
			candidates[i].Norm = 1.0
		}
		return
	}
	span := float64(hi - lo)
	for i := range candidates {
		candidates[i].Norm = float64(candidates[i].Score-lo) / span
	}
}

// compile-time check to ensure ModalityFuser implements the Fuser interface
var _ interfaces.Fuser = (*ModalityFuser)(nil)
