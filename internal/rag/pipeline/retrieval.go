package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"Muninn/internal/models"
	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
	"Muninn/pkg/logger"
)

// overFetch decides how many candidates each modality index is asked for.
// Filtering drops candidates after the index query, so every index
// over-fetches to keep topK reachable.
func overFetch(topK int) int {
	k := 3 * topK
	if min := topK + 10; k < min {
		k = min
	}
	return k
}

// RetrievalRequest is one hybrid query against the corpus.
type RetrievalRequest struct {
	Query       string
	TopK        int
	Modalities  []schema.Modality
	DocumentIDs []string                  // allow-list, empty means all documents
	Filters     *models.StructuredFilters // optional metadata constraints
}

// RetrievalPipeline answers hybrid queries: it embeds the query once per
// active modality, queries each modality's index independently, resolves
// hits against the chunk store, filters by document metadata and fuses
// the survivors into one deterministic ranking.
type RetrievalPipeline struct {
	textEmbedder  interfaces.TextEmbedder
	imageEmbedder interfaces.ImageEmbedder
	audioEmbedder interfaces.AudioEmbedder
	indexes       map[schema.Modality]interfaces.VectorIndex
	chunkStore    interfaces.ChunkStore
	docStore      interfaces.DocumentStore
	fuser         interfaces.Fuser
	log           *logger.Logger
}

// NewRetrievalPipeline creates a new RetrievalPipeline.
func NewRetrievalPipeline(
	textEmbedder interfaces.TextEmbedder,
	imageEmbedder interfaces.ImageEmbedder,
	audioEmbedder interfaces.AudioEmbedder,
	indexes map[schema.Modality]interfaces.VectorIndex,
	chunkStore interfaces.ChunkStore,
	docStore interfaces.DocumentStore,
	fuser interfaces.Fuser,
	log *logger.Logger,
) *RetrievalPipeline {
	return &RetrievalPipeline{
		textEmbedder:  textEmbedder,
		imageEmbedder: imageEmbedder,
		audioEmbedder: audioEmbedder,
		indexes:       indexes,
		chunkStore:    chunkStore,
		docStore:      docStore,
		fuser:         fuser,
		log:           log,
	}
}

// modalityHits is one modality's raw index response.
type modalityHits struct {
	modality schema.Modality
	hits     []schema.Hit
}

// Run executes the hybrid query and returns the fused candidate list, at
// most req.TopK entries. A modality whose index is empty or absent
// contributes zero candidates; that is not an error.
func (p *RetrievalPipeline) Run(ctx context.Context, req RetrievalRequest) ([]schema.Candidate, error) {
	if req.Query == "" {
		return nil, ragerr.NewValidation("query", "must not be empty")
	}
	if req.TopK <= 0 {
		return nil, ragerr.NewValidation("top_k", "must be positive, got %d", req.TopK)
	}
	if len(req.Modalities) == 0 {
		return nil, ragerr.NewValidation("modalities", "must name at least one modality")
	}
	for _, m := range req.Modalities {
		if !m.Valid() {
			return nil, ragerr.NewValidation("modalities", "unknown modality %q", m)
		}
	}

	kPrime := overFetch(req.TopK)
	active := uniqueModalities(req.Modalities)

	// Each active modality queries its own index concurrently, writing
	// into its own slot so the result layout stays deterministic.
	perModality := make([]modalityHits, len(active))
	eg, gCtx := errgroup.WithContext(ctx)
	for i, modality := range active {
		perModality[i].modality = modality
		eg.Go(func() error {
			hits, err := p.queryModality(gCtx, modality, req.Query, kPrime)
			if err != nil {
				return err
			}
			perModality[i].hits = hits
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	groups, err := p.resolveAndFilter(ctx, perModality, req)
	if err != nil {
		return nil, err
	}
	return p.fuser.Fuse(groups, req.TopK), nil
}

// queryModality embeds the query in one modality's space and queries that
// index. An absent or empty index short-circuits to zero hits before any
// embedding call is spent on it.
func (p *RetrievalPipeline) queryModality(ctx context.Context, modality schema.Modality, query string, k int) ([]schema.Hit, error) {
	index, ok := p.indexes[modality]
	if !ok || index == nil {
		return nil, nil
	}
	count, err := index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count %s index: %w", modality, err)
	}
	if count == 0 {
		return nil, nil
	}

	var vector []float32
	switch modality {
	case schema.ModalityText:
		vector, err = p.textEmbedder.EmbedQuery(ctx, query)
	case schema.ModalityImage:
		vector, err = p.imageEmbedder.EmbedQuery(ctx, query)
	case schema.ModalityAudio:
		vector, err = p.audioEmbedder.EmbedQuery(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("embed query for %s: %w", modality, err)
	}

	hits, err := index.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("query %s index: %w", modality, err)
	}
	return hits, nil
}

// resolveAndFilter looks up every hit's chunk and owning document, then
// drops candidates that fail the allow-list or structured filters. A hit
// whose chunk is gone is skipped with a warning: the index lagging a
// deletion must never fail the query.
func (p *RetrievalPipeline) resolveAndFilter(ctx context.Context, perModality []modalityHits, req RetrievalRequest) (map[schema.Modality][]schema.Candidate, error) {
	var chunkIDs []string
	for _, mh := range perModality {
		for _, hit := range mh.hits {
			chunkIDs = append(chunkIDs, hit.ChunkID)
		}
	}
	if len(chunkIDs) == 0 {
		return map[schema.Modality][]schema.Candidate{}, nil
	}

	chunks, err := p.chunkStore.Get(ctx, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	allow := make(map[string]bool, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		allow[id] = true
	}

	docIDs := make(map[string]bool)
	for _, c := range chunks {
		docIDs[c.DocumentID] = true
	}
	docs, err := p.docStore.GetByIDs(ctx, keys(docIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve documents: %w", err)
	}

	groups := make(map[schema.Modality][]schema.Candidate, len(perModality))
	for _, mh := range perModality {
		for _, hit := range mh.hits {
			chunk, ok := chunks[hit.ChunkID]
			if !ok {
				p.log.Warn((&ragerr.IndexInconsistencyError{ChunkID: hit.ChunkID}).Error())
				continue
			}
			if len(allow) > 0 && !allow[chunk.DocumentID] {
				continue
			}
			doc, ok := docs[chunk.DocumentID]
			if !ok {
				// Document record already deleted; its chunks are on the
				// way out too.
				continue
			}
			if doc.Status != models.StatusCompleted {
				// Partially indexed or failed documents stay invisible
				// until ingestion finishes.
				continue
			}
			if !matchesFilters(doc, req.Filters) {
				continue
			}
			groups[mh.modality] = append(groups[mh.modality], schema.Candidate{Chunk: chunk, Score: hit.Score})
		}
	}
	return groups, nil
}

// matchesFilters applies the structured metadata constraints.
func matchesFilters(doc *models.Document, f *models.StructuredFilters) bool {
	if f == nil {
		return true
	}
	when := doc.FilterDate()
	if f.DateFrom != nil && when.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && when.After(*f.DateTo) {
		return false
	}
	if f.MinSize > 0 && doc.Size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && doc.Size > f.MaxSize {
		return false
	}
	return true
}

func uniqueModalities(in []schema.Modality) []schema.Modality {
	seen := make(map[schema.Modality]bool, len(in))
	var out []schema.Modality
	// Walk the closed set so the result order never depends on request
	// order.
	for _, m := range schema.AllModalities() {
		for _, r := range in {
			if r == m && !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
