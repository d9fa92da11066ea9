package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"Muninn/internal/rag/ragerr"
)

func newTestIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx, err := NewMemoryIndex(3, "")
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}
	return idx
}

func TestMemoryIndexQueryOrderAndLimit(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0.9, 0.1, 0},
		"c": {0, 1, 0},
		"d": {0, 0, 1},
	}
	for id, v := range vectors {
		if err := idx.Insert(ctx, id, v); err != nil {
			t.Fatalf("Insert(%s) failed: %v", id, err)
		}
	}

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "a" || hits[1].ChunkID != "b" {
		t.Errorf("unexpected order: %v", hits)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores increase at position %d: %v", i, hits)
		}
	}

	// Asking for more than the index holds returns everything it has.
	hits, err = idx.Query(ctx, []float32{1, 0, 0}, 100)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != len(vectors) {
		t.Errorf("expected %d hits, got %d", len(vectors), len(hits))
	}
}

func TestMemoryIndexInsertRemoveNeutral(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Insert(ctx, "keep", []float32{0, 1, 0}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	before, err := idx.Query(ctx, []float32{0, 1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if err := idx.Insert(ctx, "temp", []float32{1, 0, 0}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := idx.Remove(ctx, "temp"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	// Removing it twice must change nothing.
	if err := idx.Remove(ctx, "temp"); err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}

	after, err := idx.Query(ctx, []float32{0, 1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("query-observable state changed: %d vs %d hits", len(after), len(before))
	}
	for i := range after {
		if after[i] != before[i] {
			t.Errorf("hit %d differs: %+v vs %+v", i, after[i], before[i])
		}
	}

	n, err := idx.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}
}

func TestMemoryIndexInsertReplaces(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Insert(ctx, "x", []float32{1, 0, 0}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := idx.Insert(ctx, "x", []float32{0, 0, 1}); err != nil {
		t.Fatalf("re-Insert failed: %v", err)
	}

	n, _ := idx.Count(ctx)
	if n != 1 {
		t.Fatalf("Count = %d after same-id insert, want 1", n)
	}
	hits, err := idx.Query(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "x" || hits[0].Score < 0.99 {
		t.Errorf("replaced vector not in effect: %+v", hits)
	}
}

func TestMemoryIndexWrongDimension(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.Insert(ctx, "bad", []float32{1, 0})
	if !errors.Is(err, ragerr.ErrWrongDimension) {
		t.Errorf("expected ErrWrongDimension, got %v", err)
	}
	if _, err := idx.Query(ctx, []float32{1}, 5); !errors.Is(err, ragerr.ErrWrongDimension) {
		t.Errorf("expected ErrWrongDimension on query, got %v", err)
	}
}

func TestMemoryIndexPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.idx")
	ctx := context.Background()

	idx, err := NewMemoryIndex(3, path)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("c%d", i)
		if err := idx.Insert(ctx, id, []float32{float32(i), 1, 0}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewMemoryIndex(3, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	n, _ := reopened.Count(ctx)
	if n != 5 {
		t.Fatalf("reopened index holds %d vectors, want 5", n)
	}
	hits, err := reopened.Query(ctx, []float32{4, 1, 0}, 1)
	if err != nil || len(hits) != 1 {
		t.Fatalf("Query after reopen: %v, %v", hits, err)
	}
	if hits[0].ChunkID != "c4" {
		t.Errorf("expected c4 nearest, got %s", hits[0].ChunkID)
	}

	// A snapshot with a different dimension must be rejected, not silently
	// reinterpreted.
	if _, err := NewMemoryIndex(4, path); err == nil {
		t.Error("expected dimension mismatch error on load")
	}
}

func TestMemoryIndexConcurrentInserts(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-c%d", w, i)
				if err := idx.Insert(ctx, id, []float32{float32(w), float32(i), 1}); err != nil {
					t.Errorf("Insert(%s) failed: %v", id, err)
				}
			}
		}(w)
	}
	wg.Wait()

	n, _ := idx.Count(ctx)
	if n != 400 {
		t.Errorf("Count = %d after concurrent inserts, want 400", n)
	}
}
