package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
	"Muninn/pkg/logger"
)

const (
	// Schema fields of a modality collection.
	FieldChunkID = "chunk_id"
	FieldVector  = "vector"
)

// MilvusIndex backs one modality's vector index with a Milvus collection.
// Writes use upsert so a repeated insert for the same chunk id replaces the
// stored vector, and reads search under the COSINE metric so scores come
// back as similarities, highest first.
type MilvusIndex struct {
	log        *logger.Logger
	client     client.Client
	collection string
	dim        int
	sp         entity.SearchParam
}

// NewMilvusIndex creates an index adapter over an existing collection. The
// search parameter is derived from the index type the collection was built
// with.
func NewMilvusIndex(c client.Client, collection string, dim int, indexType string, log *logger.Logger) (*MilvusIndex, error) {
	if c == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	sp, err := searchParamFor(indexType)
	if err != nil {
		return nil, err
	}
	return &MilvusIndex{
		log:        log,
		client:     c,
		collection: collection,
		dim:        dim,
		sp:         sp,
	}, nil
}

// searchParamFor picks a search parameter matching the collection's index
// type, with conservative defaults.
func searchParamFor(indexType string) (entity.SearchParam, error) {
	switch indexType {
	case "IVF_FLAT", "IVF_SQ8":
		return entity.NewIndexIvfFlatSearchParam(16)
	case "IVF_PQ":
		return entity.NewIndexIvfPQSearchParam(16)
	case "HNSW":
		return entity.NewIndexHNSWSearchParam(64)
	case "", "AUTOINDEX":
		return entity.NewIndexAUTOINDEXSearchParam(1)
	case "FLAT":
		return entity.NewIndexFlatSearchParam()
	default:
		return nil, fmt.Errorf("unsupported milvus index type: %s", indexType)
	}
}

// Insert upserts one chunk's vector.
func (s *MilvusIndex) Insert(ctx context.Context, chunkID string, vector []float32) error {
	if len(vector) != s.dim {
		return fmt.Errorf("insert %s: got %d, want %d: %w", chunkID, len(vector), s.dim, ragerr.ErrWrongDimension)
	}
	idCol := entity.NewColumnVarChar(FieldChunkID, []string{chunkID})
	vecCol := entity.NewColumnFloatVector(FieldVector, s.dim, [][]float32{vector})

	if _, err := s.client.Upsert(ctx, s.collection, "", idCol, vecCol); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", s.collection, err)
	}
	return nil
}

// Remove deletes a chunk's vector by primary key. Deleting an unknown id is
// a no-op on the Milvus side.
func (s *MilvusIndex) Remove(ctx context.Context, chunkID string) error {
	expr := fmt.Sprintf(`%s == "%s"`, FieldChunkID, chunkID)
	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", s.collection, err)
	}
	return nil
}

// Query searches the collection and returns up to k hits, highest
// similarity first.
func (s *MilvusIndex) Query(ctx context.Context, vector []float32, k int) ([]schema.Hit, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query: got %d, want %d: %w", len(vector), s.dim, ragerr.ErrWrongDimension)
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := s.client.Search(
		ctx, s.collection, []string{}, "", []string{FieldChunkID},
		[]entity.Vector{entity.FloatVector(vector)},
		FieldVector, entity.COSINE, k, s.sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", s.collection, err)
	}

	var hits []schema.Hit
	for _, res := range results {
		var idCol *entity.ColumnVarChar
		for _, field := range res.Fields {
			if field.Name() == FieldChunkID {
				idCol, _ = field.(*entity.ColumnVarChar)
			}
		}
		if idCol == nil {
			s.log.Warn(fmt.Sprintf("Search result from %s is missing the chunk id column, skipping.", s.collection))
			continue
		}
		ids := idCol.Data()
		for i := 0; i < res.ResultCount && i < len(ids); i++ {
			hits = append(hits, schema.Hit{ChunkID: ids[i], Score: res.Scores[i]})
		}
	}
	return hits, nil
}

// Count reports the collection's row count from its statistics.
func (s *MilvusIndex) Count(ctx context.Context) (int64, error) {
	stats, err := s.client.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to read statistics of %s: %w", s.collection, err)
	}
	n, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected row_count in %s statistics: %w", s.collection, err)
	}
	return n, nil
}

// Dimensions returns the fixed vector dimension of this index.
func (s *MilvusIndex) Dimensions() int { return s.dim }

// Close releases nothing: the underlying client is shared and owned by the
// database layer.
func (s *MilvusIndex) Close() error { return nil }

// compile-time check to ensure MilvusIndex implements the VectorIndex interface
var _ interfaces.VectorIndex = (*MilvusIndex)(nil)
