// Package docstore holds the authoritative stores for chunk content. The
// vector indexes only ever hold chunk ids; everything a citation needs to
// render lives here.
package docstore

import (
	"context"
	"sort"
	"sync"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
)

// InMemoryChunkStore is a thread-safe, in-memory ChunkStore. It backs
// single-node deployments and tests; durable deployments use the MongoDB
// implementation.
type InMemoryChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]*schema.Chunk
	byDoc  map[string][]string
}

// NewInMemoryChunkStore creates a new empty store.
func NewInMemoryChunkStore() *InMemoryChunkStore {
	return &InMemoryChunkStore{
		chunks: make(map[string]*schema.Chunk),
		byDoc:  make(map[string][]string),
	}
}

// Add stores chunks, replacing any existing chunk with the same id.
func (s *InMemoryChunkStore) Add(ctx context.Context, chunks []*schema.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if _, exists := s.chunks[c.ID]; !exists {
			s.byDoc[c.DocumentID] = append(s.byDoc[c.DocumentID], c.ID)
		}
		s.chunks[c.ID] = c
	}
	return nil
}

// Get returns the chunks found for the given ids. Missing ids are simply
// absent from the result map, never an error.
func (s *InMemoryChunkStore) Get(ctx context.Context, ids []string) (map[string]*schema.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*schema.Chunk, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			result[id] = c
		}
	}
	return result, nil
}

// ListByDocument returns a document's chunks in sequence order.
func (s *InMemoryChunkStore) ListByDocument(ctx context.Context, documentID string) ([]*schema.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byDoc[documentID]
	out := make([]*schema.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// DeleteByDocument removes every chunk belonging to the document.
func (s *InMemoryChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byDoc[documentID] {
		delete(s.chunks, id)
	}
	delete(s.byDoc, documentID)
	return nil
}

// Sample returns up to limit chunks in stable id order.
func (s *InMemoryChunkStore) Sample(ctx context.Context, limit int) ([]*schema.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*schema.Chunk, len(ids))
	for i, id := range ids {
		out[i] = s.chunks[id]
	}
	return out, nil
}

// compile-time check to ensure InMemoryChunkStore implements the ChunkStore interface
var _ interfaces.ChunkStore = (*InMemoryChunkStore)(nil)
