package vectorstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
)

// MemoryIndex is a flat in-memory vector index. Vectors are normalized on
// insert so an inner-product scan yields cosine similarity. Reads and
// writes are guarded by a single RWMutex: inserts for different chunk ids
// proceed safely from multiple goroutines, same-id inserts serialize into
// replace semantics, and queries observe the last committed state.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors [][]float32
	pos     map[string]int
	path    string
}

// indexState is the on-disk snapshot layout.
type indexState struct {
	Dim     int
	IDs     []string
	Vectors [][]float32
}

// NewMemoryIndex creates a memory index of the given dimension. When path
// is non-empty a previously saved snapshot is loaded from it if present,
// and Close writes the current state back, so the index survives restarts.
func NewMemoryIndex(dim int, path string) (*MemoryIndex, error) {
	if dim <= 0 {
		return nil, ragerr.NewValidation("dimension", "must be positive, got %d", dim)
	}
	idx := &MemoryIndex{
		dim:  dim,
		pos:  make(map[string]int),
		path: path,
	}
	if path != "" {
		if err := idx.load(path); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Insert adds or replaces the vector for a chunk id.
func (idx *MemoryIndex) Insert(ctx context.Context, chunkID string, vector []float32) error {
	if len(vector) != idx.dim {
		return fmt.Errorf("insert %s: got %d, want %d: %w", chunkID, len(vector), idx.dim, ragerr.ErrWrongDimension)
	}
	normalized := normalize(vector)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if at, ok := idx.pos[chunkID]; ok {
		idx.vectors[at] = normalized
		return nil
	}
	idx.pos[chunkID] = len(idx.ids)
	idx.ids = append(idx.ids, chunkID)
	idx.vectors = append(idx.vectors, normalized)
	return nil
}

// Remove deletes a chunk's vector. Removing an absent id is a no-op.
func (idx *MemoryIndex) Remove(ctx context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	at, ok := idx.pos[chunkID]
	if !ok {
		return nil
	}
	last := len(idx.ids) - 1
	if at != last {
		idx.ids[at] = idx.ids[last]
		idx.vectors[at] = idx.vectors[last]
		idx.pos[idx.ids[at]] = at
	}
	idx.ids = idx.ids[:last]
	idx.vectors = idx.vectors[:last]
	delete(idx.pos, chunkID)
	return nil
}

// Query returns up to k hits ordered by decreasing cosine similarity. Equal
// scores order by chunk id so identical corpus states always produce
// identical result lists.
func (idx *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]schema.Hit, error) {
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("query: got %d, want %d: %w", len(vector), idx.dim, ragerr.ErrWrongDimension)
	}
	if k <= 0 {
		return nil, nil
	}
	q := normalize(vector)

	idx.mu.RLock()
	hits := make([]schema.Hit, len(idx.ids))
	for i, v := range idx.vectors {
		hits[i] = schema.Hit{ChunkID: idx.ids[i], Score: dot(q, v)}
	}
	idx.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored vectors.
func (idx *MemoryIndex) Count(ctx context.Context) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int64(len(idx.ids)), nil
}

// Dimensions returns the fixed vector dimension of this index.
func (idx *MemoryIndex) Dimensions() int { return idx.dim }

// Close persists the index to its snapshot path, if one was configured.
func (idx *MemoryIndex) Close() error {
	if idx.path == "" {
		return nil
	}
	return idx.Save(idx.path)
}

// Save writes a snapshot of the index to path. The write goes through a
// temporary file and a rename so a crash never leaves a torn snapshot.
func (idx *MemoryIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	idx.mu.RLock()
	state := indexState{
		Dim:     idx.dim,
		IDs:     append([]string(nil), idx.ids...),
		Vectors: append([][]float32(nil), idx.vectors...),
	}
	idx.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(state); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode index snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (idx *MemoryIndex) load(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open index snapshot: %w", err)
	}
	defer f.Close()

	var state indexState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode index snapshot %s: %w", path, err)
	}
	if state.Dim != idx.dim {
		return fmt.Errorf("index snapshot %s has dimension %d, configured %d", path, state.Dim, idx.dim)
	}
	idx.ids = state.IDs
	idx.vectors = state.Vectors
	idx.pos = make(map[string]int, len(state.IDs))
	for i, id := range state.IDs {
		idx.pos[id] = i
	}
	return nil
}

// normalize returns a unit-length copy of v. The zero vector stays zero and
// scores 0 against everything.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// compile-time check to ensure MemoryIndex implements the VectorIndex interface
var _ interfaces.VectorIndex = (*MemoryIndex)(nil)
