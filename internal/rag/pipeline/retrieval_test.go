package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"Muninn/internal/models"
	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/rerankers"
	"Muninn/internal/rag/schema"
	"Muninn/internal/rag/storages/docstore"
	"Muninn/internal/rag_service/dal"
)

// retrievalHarness wires a retrieval pipeline over in-memory stores and
// indexes so tests can seed exact vectors.
type retrievalHarness struct {
	store   *docstore.InMemoryChunkStore
	docs    *dal.MemoryDocumentDAL
	indexes map[schema.Modality]interfaces.VectorIndex
	text    *fakeTextEmbedder
	image   *fakeImageEmbedder
	audio   *fakeAudioEmbedder
	p       *RetrievalPipeline
}

func newRetrievalHarness(t *testing.T) *retrievalHarness {
	t.Helper()
	h := &retrievalHarness{
		store: docstore.NewInMemoryChunkStore(),
		docs:  dal.NewMemoryDocumentDAL(),
		indexes: map[schema.Modality]interfaces.VectorIndex{
			schema.ModalityText:  newTestIndex(t),
			schema.ModalityImage: newTestIndex(t),
			schema.ModalityAudio: newTestIndex(t),
		},
		text:  &fakeTextEmbedder{dim: testDim, vectors: map[string][]float32{}},
		image: &fakeImageEmbedder{dim: testDim},
		audio: &fakeAudioEmbedder{dim: testDim},
	}
	h.p = NewRetrievalPipeline(
		h.text,
		h.image,
		h.audio,
		h.indexes,
		h.store,
		h.docs,
		rerankers.NewModalityFuser(),
		newTestLogger(),
	)
	return h
}

// seedDoc registers a completed document row.
func (h *retrievalHarness) seedDoc(t *testing.T, id string, size int64, uploaded time.Time) {
	t.Helper()
	err := h.docs.Create(context.Background(), &models.Document{
		ID:         id,
		Modality:   string(schema.ModalityText),
		Filename:   id + ".txt",
		Size:       size,
		Status:     models.StatusCompleted,
		UploadedAt: uploaded,
	})
	if err != nil {
		t.Fatalf("seed document %s: %v", id, err)
	}
}

// seedChunk stores a chunk and indexes its vector in the chunk's modality.
func (h *retrievalHarness) seedChunk(t *testing.T, c *schema.Chunk, vec []float32) {
	t.Helper()
	ctx := context.Background()
	if err := h.store.Add(ctx, []*schema.Chunk{c}); err != nil {
		t.Fatalf("seed chunk %s: %v", c.ID, err)
	}
	if err := h.indexes[c.Modality].Insert(ctx, c.ID, vec); err != nil {
		t.Fatalf("index chunk %s: %v", c.ID, err)
	}
}

func textOnly(query string, topK int) RetrievalRequest {
	return RetrievalRequest{
		Query:      query,
		TopK:       topK,
		Modalities: []schema.Modality{schema.ModalityText},
	}
}

func TestRetrievalValidation(t *testing.T) {
	h := newRetrievalHarness(t)
	cases := []struct {
		name string
		req  RetrievalRequest
	}{
		{"empty query", RetrievalRequest{Query: "", TopK: 5, Modalities: []schema.Modality{schema.ModalityText}}},
		{"zero top_k", RetrievalRequest{Query: "q", TopK: 0, Modalities: []schema.Modality{schema.ModalityText}}},
		{"no modalities", RetrievalRequest{Query: "q", TopK: 5}},
		{"unknown modality", RetrievalRequest{Query: "q", TopK: 5, Modalities: []schema.Modality{"video"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.p.Run(context.Background(), tc.req)
			var ve *ragerr.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestRetrievalRanksBySimilarity(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seedDoc(t, "doc-1", 100, time.Now())
	h.seedChunk(t, &schema.Chunk{ID: "c1", DocumentID: "doc-1", Modality: schema.ModalityText, Seq: 0, Content: "alpha"}, []float32{1, 0, 0, 0})
	h.seedChunk(t, &schema.Chunk{ID: "c2", DocumentID: "doc-1", Modality: schema.ModalityText, Seq: 1, Content: "beta"}, []float32{0, 1, 0, 0})
	h.seedChunk(t, &schema.Chunk{ID: "c3", DocumentID: "doc-1", Modality: schema.ModalityText, Seq: 2, Content: "gamma"}, []float32{0, 0, 1, 0})
	h.text.vectors["about alpha"] = []float32{0.9, 0.1, 0, 0}

	got, err := h.p.Run(context.Background(), textOnly("about alpha", 2))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Chunk.ID != "c1" || got[1].Chunk.ID != "c2" {
		t.Errorf("ranking [%s %s], want [c1 c2]", got[0].Chunk.ID, got[1].Chunk.ID)
	}
	if got[0].Norm != 1.0 {
		t.Errorf("best candidate norm %v, want 1.0", got[0].Norm)
	}
	if got[1].Norm >= got[0].Norm {
		t.Errorf("norms not descending: %v then %v", got[0].Norm, got[1].Norm)
	}
}

// A text query against a corpus that only holds audio must return nothing,
// and must not spend an embedding call on the empty text index.
func TestRetrievalEmptyModalityIsSilent(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seedDoc(t, "doc-1", 100, time.Now())
	h.seedChunk(t, &schema.Chunk{ID: "a1", DocumentID: "doc-1", Modality: schema.ModalityAudio, Seq: 0, Content: "spoken word"}, []float32{1, 0, 0, 0})

	got, err := h.p.Run(context.Background(), textOnly("anything", 5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
	if h.text.queryCalls != 0 {
		t.Errorf("text query embedded %d times against an empty index, want 0", h.text.queryCalls)
	}
}

func TestRetrievalAbsentIndex(t *testing.T) {
	h := newRetrievalHarness(t)
	delete(h.indexes, schema.ModalityImage)
	h.seedDoc(t, "doc-1", 100, time.Now())
	h.seedChunk(t, &schema.Chunk{ID: "c1", DocumentID: "doc-1", Modality: schema.ModalityText, Seq: 0, Content: "alpha"}, []float32{1, 0, 0, 0})
	h.text.vectors["q"] = []float32{1, 0, 0, 0}

	got, err := h.p.Run(context.Background(), RetrievalRequest{
		Query:      "q",
		TopK:       5,
		Modalities: []schema.Modality{schema.ModalityText, schema.ModalityImage},
	})
	if err != nil {
		t.Fatalf("a missing modality index must not fail the query: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "c1" {
		t.Errorf("unexpected candidates %v", got)
	}
	if h.image.queryCalls != 0 {
		t.Errorf("image query embedded %d times with no index, want 0", h.image.queryCalls)
	}
}

func TestRetrievalDocumentAllowList(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seedDoc(t, "doc-a", 100, time.Now())
	h.seedDoc(t, "doc-b", 100, time.Now())
	h.seedChunk(t, &schema.Chunk{ID: "ca", DocumentID: "doc-a", Modality: schema.ModalityText, Seq: 0, Content: "from a"}, []float32{1, 0, 0, 0})
	h.seedChunk(t, &schema.Chunk{ID: "cb", DocumentID: "doc-b", Modality: schema.ModalityText, Seq: 0, Content: "from b"}, []float32{0.9, 0.1, 0, 0})
	h.text.vectors["q"] = []float32{1, 0, 0, 0}

	req := textOnly("q", 5)
	req.DocumentIDs = []string{"doc-b"}
	got, err := h.p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.DocumentID != "doc-b" {
		t.Errorf("allow-list leaked candidates: %v", got)
	}
}

func TestRetrievalStructuredFilters(t *testing.T) {
	h := newRetrievalHarness(t)
	old := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	h.seedDoc(t, "doc-old", 50, old)
	h.seedDoc(t, "doc-new", 5000, recent)
	h.seedChunk(t, &schema.Chunk{ID: "co", DocumentID: "doc-old", Modality: schema.ModalityText, Seq: 0, Content: "old"}, []float32{1, 0, 0, 0})
	h.seedChunk(t, &schema.Chunk{ID: "cn", DocumentID: "doc-new", Modality: schema.ModalityText, Seq: 0, Content: "new"}, []float32{0.9, 0.1, 0, 0})
	h.text.vectors["q"] = []float32{1, 0, 0, 0}

	t.Run("date from", func(t *testing.T) {
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		req := textOnly("q", 5)
		req.Filters = &models.StructuredFilters{DateFrom: &from}
		got, err := h.p.Run(context.Background(), req)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(got) != 1 || got[0].Chunk.ID != "cn" {
			t.Errorf("date filter kept %v, want only cn", got)
		}
	})

	t.Run("max size", func(t *testing.T) {
		req := textOnly("q", 5)
		req.Filters = &models.StructuredFilters{MaxSize: 100}
		got, err := h.p.Run(context.Background(), req)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(got) != 1 || got[0].Chunk.ID != "co" {
			t.Errorf("size filter kept %v, want only co", got)
		}
	})

	t.Run("no filters", func(t *testing.T) {
		got, err := h.p.Run(context.Background(), textOnly("q", 5))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("unfiltered query returned %d candidates, want 2", len(got))
		}
	})
}

// A vector whose chunk has vanished from the store is skipped without
// failing the query.
func TestRetrievalIndexInconsistency(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seedDoc(t, "doc-1", 100, time.Now())
	h.seedChunk(t, &schema.Chunk{ID: "c1", DocumentID: "doc-1", Modality: schema.ModalityText, Seq: 0, Content: "real"}, []float32{0.9, 0.1, 0, 0})
	if err := h.indexes[schema.ModalityText].Insert(context.Background(), "ghost", []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("insert ghost: %v", err)
	}
	h.text.vectors["q"] = []float32{1, 0, 0, 0}

	got, err := h.p.Run(context.Background(), textOnly("q", 5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "c1" {
		t.Errorf("expected only the resolvable chunk, got %v", got)
	}
}

// A chunk whose document row is already deleted is dropped, covering the
// window between document deletion and index cleanup.
func TestRetrievalSkipsDeletedDocuments(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seedDoc(t, "doc-live", 100, time.Now())
	h.seedChunk(t, &schema.Chunk{ID: "cl", DocumentID: "doc-live", Modality: schema.ModalityText, Seq: 0, Content: "live"}, []float32{0.9, 0.1, 0, 0})
	h.seedChunk(t, &schema.Chunk{ID: "cd", DocumentID: "doc-gone", Modality: schema.ModalityText, Seq: 0, Content: "dangling"}, []float32{1, 0, 0, 0})
	h.text.vectors["q"] = []float32{1, 0, 0, 0}

	got, err := h.p.Run(context.Background(), textOnly("q", 5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "cl" {
		t.Errorf("expected only the live document's chunk, got %v", got)
	}
}

// Chunks of a document still being ingested stay invisible until the
// document completes.
func TestRetrievalHidesIncompleteDocuments(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seedDoc(t, "doc-done", 100, time.Now())
	if err := h.docs.Create(context.Background(), &models.Document{
		ID:       "doc-wip",
		Modality: string(schema.ModalityText),
		Filename: "wip.txt",
		Size:     100,
		Status:   models.StatusProcessing,
	}); err != nil {
		t.Fatalf("seed wip document: %v", err)
	}
	h.seedChunk(t, &schema.Chunk{ID: "cd", DocumentID: "doc-done", Modality: schema.ModalityText, Seq: 0, Content: "done"}, []float32{0.9, 0.1, 0, 0})
	h.seedChunk(t, &schema.Chunk{ID: "cw", DocumentID: "doc-wip", Modality: schema.ModalityText, Seq: 0, Content: "in flight"}, []float32{1, 0, 0, 0})
	h.text.vectors["q"] = []float32{1, 0, 0, 0}

	got, err := h.p.Run(context.Background(), textOnly("q", 5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "cd" {
		t.Errorf("expected only the completed document's chunk, got %v", got)
	}
}

func TestRetrievalFusesModalitiesWithPriorityTies(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seedDoc(t, "doc-1", 100, time.Now())
	h.seedChunk(t, &schema.Chunk{ID: "t1", DocumentID: "doc-1", Modality: schema.ModalityText, Seq: 0, Content: "text hit"}, []float32{1, 0, 0, 0})
	h.seedChunk(t, &schema.Chunk{ID: "t2", DocumentID: "doc-1", Modality: schema.ModalityText, Seq: 1, Content: "weak text"}, []float32{0, 1, 0, 0})

	// Give the audio index exactly the vector the fake produces for the
	// query so its lone segment scores a perfect cosine.
	audioQuery := vectorFor("mixed query", testDim)
	h.seedChunk(t, &schema.Chunk{ID: "a1", DocumentID: "doc-1", Modality: schema.ModalityAudio, Seq: 0, Content: "spoken hit"}, audioQuery)
	h.text.vectors["mixed query"] = []float32{1, 0, 0, 0}

	got, err := h.p.Run(context.Background(), RetrievalRequest{
		Query:      "mixed query",
		TopK:       3,
		Modalities: []schema.Modality{schema.ModalityAudio, schema.ModalityText},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	// t1 and a1 both normalize to 1.0; text outranks audio on ties.
	if got[0].Chunk.ID != "t1" || got[1].Chunk.ID != "a1" || got[2].Chunk.ID != "t2" {
		t.Errorf("ranking [%s %s %s], want [t1 a1 t2]",
			got[0].Chunk.ID, got[1].Chunk.ID, got[2].Chunk.ID)
	}
}

func TestRetrievalRepeatedQueriesDeterministic(t *testing.T) {
	h := newRetrievalHarness(t)
	h.seedDoc(t, "doc-1", 100, time.Now())
	for i, vec := range [][]float32{{1, 0, 0, 0}, {0.8, 0.2, 0, 0}, {0.6, 0.4, 0, 0}, {0, 1, 0, 0}} {
		h.seedChunk(t, &schema.Chunk{
			ID:         string(rune('a'+i)) + "-chunk",
			DocumentID: "doc-1",
			Modality:   schema.ModalityText,
			Seq:        i,
			Content:    "content",
		}, vec)
	}
	h.text.vectors["q"] = []float32{1, 0, 0, 0}

	first, err := h.p.Run(context.Background(), textOnly("q", 3))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := h.p.Run(context.Background(), textOnly("q", 3))
		if err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d returned %d candidates, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].Chunk.ID != first[j].Chunk.ID || again[j].Norm != first[j].Norm {
				t.Fatalf("run %d diverged at position %d", i, j)
			}
		}
	}
}
