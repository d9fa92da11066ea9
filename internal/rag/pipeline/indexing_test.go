package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
	"Muninn/internal/rag/storages/docstore"
	"Muninn/internal/rag/storages/vectorstore"
)

const testDim = 4

func newTestIndex(t *testing.T) *vectorstore.MemoryIndex {
	t.Helper()
	idx, err := vectorstore.NewMemoryIndex(testDim, "")
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	return idx
}

func textChunk(id string, seq int, content string) *schema.Chunk {
	return &schema.Chunk{
		ID:       id,
		Modality: schema.ModalityText,
		Seq:      seq,
		Content:  content,
	}
}

func TestIngestTextStoresAndIndexes(t *testing.T) {
	store := docstore.NewInMemoryChunkStore()
	index := newTestIndex(t)
	splitter := &fakeSplitter{chunks: []*schema.Chunk{
		textChunk("c1", 0, "first part"),
		textChunk("c2", 1, "second part"),
		textChunk("c3", 2, "third part"),
	}}
	p := NewIndexingPipeline(
		splitter,
		&fakeTextEmbedder{dim: testDim},
		nil,
		nil,
		store,
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityText: index},
		newTestLogger(),
		2,
	)

	n, err := p.IngestText(context.Background(), "doc-1", []schema.Page{{Number: 1, Text: "ignored by fake"}})
	if err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}
	if n != 3 {
		t.Errorf("IngestText reported %d chunks, want 3", n)
	}

	stored, err := store.ListByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("store holds %d chunks, want 3", len(stored))
	}
	for _, c := range stored {
		if c.DocumentID != "doc-1" {
			t.Errorf("chunk %s has document %s, want doc-1", c.ID, c.DocumentID)
		}
	}
	if got := indexCount(t, index); got != 3 {
		t.Errorf("index holds %d vectors, want 3", got)
	}
}

func TestIngestTextEmptyDocument(t *testing.T) {
	store := docstore.NewInMemoryChunkStore()
	index := newTestIndex(t)
	p := NewIndexingPipeline(
		&fakeSplitter{},
		&fakeTextEmbedder{dim: testDim},
		nil,
		nil,
		store,
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityText: index},
		newTestLogger(),
		0,
	)

	n, err := p.IngestText(context.Background(), "doc-1", nil)
	if err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}
	if n != 0 || indexCount(t, index) != 0 {
		t.Errorf("empty document produced %d chunks", n)
	}
}

func TestIngestTextEmbedFailureKeepsStoredChunks(t *testing.T) {
	store := docstore.NewInMemoryChunkStore()
	index := newTestIndex(t)
	p := NewIndexingPipeline(
		&fakeSplitter{chunks: []*schema.Chunk{textChunk("c1", 0, "part")}},
		&fakeTextEmbedder{dim: testDim, err: errors.New("model offline")},
		nil,
		nil,
		store,
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityText: index},
		newTestLogger(),
		1,
	)

	_, err := p.IngestText(context.Background(), "doc-1", []schema.Page{{Number: 1, Text: "x"}})
	if err == nil {
		t.Fatal("expected embedding failure to surface")
	}

	// Stored chunks stay: the document will be marked failed and cleaned
	// up by the deletion cascade, not by ingestion itself.
	stored, _ := store.ListByDocument(context.Background(), "doc-1")
	if len(stored) != 1 {
		t.Errorf("store holds %d chunks after failure, want 1", len(stored))
	}
	if got := indexCount(t, index); got != 0 {
		t.Errorf("index holds %d vectors after failure, want 0", got)
	}
}

func TestIngestTextMissingIndex(t *testing.T) {
	p := NewIndexingPipeline(
		&fakeSplitter{},
		&fakeTextEmbedder{dim: testDim},
		nil,
		nil,
		docstore.NewInMemoryChunkStore(),
		map[schema.Modality]interfaces.VectorIndex{},
		newTestLogger(),
		1,
	)

	if _, err := p.IngestText(context.Background(), "doc-1", nil); err == nil {
		t.Error("expected error when the text index is not configured")
	}
}

func TestIngestImageSingleChunk(t *testing.T) {
	store := docstore.NewInMemoryChunkStore()
	index := newTestIndex(t)
	p := NewIndexingPipeline(
		&fakeSplitter{},
		nil,
		&fakeImageEmbedder{dim: testDim, vector: []float32{1, 0, 0, 0}},
		nil,
		store,
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityImage: index},
		newTestLogger(),
		1,
	)

	n, err := p.IngestImage(context.Background(), "img-1", []byte{0x89, 0x50}, "diagram.png")
	if err != nil {
		t.Fatalf("IngestImage failed: %v", err)
	}
	if n != 1 {
		t.Errorf("IngestImage reported %d chunks, want 1", n)
	}

	stored, _ := store.ListByDocument(context.Background(), "img-1")
	if len(stored) != 1 {
		t.Fatalf("store holds %d chunks, want 1", len(stored))
	}
	if stored[0].Modality != schema.ModalityImage || stored[0].Content != "diagram.png" {
		t.Errorf("unexpected image chunk %+v", stored[0])
	}
	if got := indexCount(t, index); got != 1 {
		t.Errorf("index holds %d vectors, want 1", got)
	}
}

func TestIngestAudioTimedChunks(t *testing.T) {
	store := docstore.NewInMemoryChunkStore()
	index := newTestIndex(t)
	embedder := &fakeAudioEmbedder{
		dim: testDim,
		segments: []schema.SegmentVector{
			{Text: "welcome to the call", StartSec: 0, EndSec: 12.5, Vector: []float32{1, 0, 0, 0}},
			{Text: "revenue grew twelve percent", StartSec: 12.5, EndSec: 30, Vector: []float32{0, 1, 0, 0}},
		},
	}
	p := NewIndexingPipeline(
		&fakeSplitter{},
		nil,
		nil,
		embedder,
		store,
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityAudio: index},
		newTestLogger(),
		2,
	)

	n, err := p.IngestAudio(context.Background(), "aud-1", []byte("riff"))
	if err != nil {
		t.Fatalf("IngestAudio failed: %v", err)
	}
	if n != 2 {
		t.Errorf("IngestAudio reported %d chunks, want 2", n)
	}

	stored, _ := store.ListByDocument(context.Background(), "aud-1")
	if len(stored) != 2 {
		t.Fatalf("store holds %d chunks, want 2", len(stored))
	}
	if stored[0].Locator.StartSec != 0 || stored[0].Locator.EndSec != 12.5 {
		t.Errorf("first segment locator %+v", stored[0].Locator)
	}
	if stored[1].Seq != 1 || stored[1].Content != "revenue grew twelve percent" {
		t.Errorf("second segment %+v", stored[1])
	}
	if got := indexCount(t, index); got != 2 {
		t.Errorf("index holds %d vectors, want 2", got)
	}
}

func TestIngestAudioSilence(t *testing.T) {
	p := NewIndexingPipeline(
		&fakeSplitter{},
		nil,
		nil,
		&fakeAudioEmbedder{dim: testDim},
		docstore.NewInMemoryChunkStore(),
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityAudio: newTestIndex(t)},
		newTestLogger(),
		1,
	)

	n, err := p.IngestAudio(context.Background(), "aud-1", []byte("riff"))
	if err != nil {
		t.Fatalf("IngestAudio failed: %v", err)
	}
	if n != 0 {
		t.Errorf("silent audio produced %d chunks, want 0", n)
	}
}

func TestRemoveDocumentCascades(t *testing.T) {
	store := docstore.NewInMemoryChunkStore()
	textIndex := newTestIndex(t)
	audioIndex := newTestIndex(t)
	indexes := map[schema.Modality]interfaces.VectorIndex{
		schema.ModalityText:  textIndex,
		schema.ModalityAudio: audioIndex,
	}

	p := NewIndexingPipeline(
		&fakeSplitter{chunks: []*schema.Chunk{
			textChunk("t1", 0, "alpha"),
			textChunk("t2", 1, "beta"),
		}},
		&fakeTextEmbedder{dim: testDim},
		nil,
		&fakeAudioEmbedder{dim: testDim, segments: []schema.SegmentVector{
			{Text: "spoken", StartSec: 0, EndSec: 5, Vector: []float32{0, 0, 1, 0}},
		}},
		store,
		indexes,
		newTestLogger(),
		2,
	)

	ctx := context.Background()
	if _, err := p.IngestText(ctx, "doc-1", []schema.Page{{Number: 1, Text: "x"}}); err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if _, err := p.IngestAudio(ctx, "doc-1", []byte("riff")); err != nil {
		t.Fatalf("IngestAudio: %v", err)
	}
	if _, err := p.IngestText(ctx, "doc-2", []schema.Page{{Number: 1, Text: "y"}}); err != nil {
		t.Fatalf("IngestText doc-2: %v", err)
	}

	if err := p.RemoveDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("RemoveDocument failed: %v", err)
	}

	if left, _ := store.ListByDocument(ctx, "doc-1"); len(left) != 0 {
		t.Errorf("doc-1 still has %d chunks in the store", len(left))
	}
	if got := indexCount(t, audioIndex); got != 0 {
		t.Errorf("audio index still holds %d vectors", got)
	}
	// doc-2's two text chunks must survive the cascade.
	if got := indexCount(t, textIndex); got != 2 {
		t.Errorf("text index holds %d vectors, want 2", got)
	}
	if left, _ := store.ListByDocument(ctx, "doc-2"); len(left) != 2 {
		t.Errorf("doc-2 lost chunks, has %d", len(left))
	}
}

func TestRemoveDocumentUnknownID(t *testing.T) {
	p := NewIndexingPipeline(
		&fakeSplitter{},
		&fakeTextEmbedder{dim: testDim},
		nil,
		nil,
		docstore.NewInMemoryChunkStore(),
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityText: newTestIndex(t)},
		newTestLogger(),
		1,
	)

	if err := p.RemoveDocument(context.Background(), "nope"); err != nil {
		t.Errorf("removing an unknown document should be a no-op, got %v", err)
	}
}

// A chunk listed in the store whose vector is already gone must not stop
// the sweep; the store row is still deleted.
func TestRemoveDocumentSurvivesMissingVector(t *testing.T) {
	store := docstore.NewInMemoryChunkStore()
	index := newTestIndex(t)
	ctx := context.Background()

	chunk := textChunk("c1", 0, "orphan")
	chunk.DocumentID = "doc-1"
	if err := store.Add(ctx, []*schema.Chunk{chunk}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	p := NewIndexingPipeline(
		&fakeSplitter{},
		&fakeTextEmbedder{dim: testDim},
		nil,
		nil,
		store,
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityText: index},
		newTestLogger(),
		1,
	)

	err := p.RemoveDocument(ctx, "doc-1")
	if err != nil {
		// A missing vector may surface as an error; the store must be
		// clean either way.
		t.Logf("RemoveDocument returned %v", err)
	}
	if left, _ := store.ListByDocument(ctx, "doc-1"); len(left) != 0 {
		t.Errorf("store still holds %d chunks", len(left))
	}
}

func TestIngestTextManyBatches(t *testing.T) {
	var chunks []*schema.Chunk
	for i := 0; i < 70; i++ {
		chunks = append(chunks, textChunk(fmt.Sprintf("c%03d", i), i, fmt.Sprintf("chunk number %d content", i)))
	}
	store := docstore.NewInMemoryChunkStore()
	index := newTestIndex(t)
	embedder := &fakeTextEmbedder{dim: testDim}
	p := NewIndexingPipeline(
		&fakeSplitter{chunks: chunks},
		embedder,
		nil,
		nil,
		store,
		map[schema.Modality]interfaces.VectorIndex{schema.ModalityText: index},
		newTestLogger(),
		4,
	)

	n, err := p.IngestText(context.Background(), "big-doc", []schema.Page{{Number: 1, Text: "x"}})
	if err != nil {
		t.Fatalf("IngestText failed: %v", err)
	}
	if n != 70 {
		t.Errorf("reported %d chunks, want 70", n)
	}
	if got := indexCount(t, index); got != 70 {
		t.Errorf("index holds %d vectors, want 70", got)
	}
	// 70 chunks at batch size 32 is three embedding calls.
	if embedder.docCalls != 3 {
		t.Errorf("embedder called %d times, want 3", embedder.docCalls)
	}
}
