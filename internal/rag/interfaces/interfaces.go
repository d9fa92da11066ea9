package interfaces

import (
	"context"

	"Muninn/internal/models"
	"Muninn/internal/rag/schema"
)

// Loader parses one uploaded file into normalized per-page text. Unpaged
// formats emit a single page numbered 1.
type Loader interface {
	Load(ctx context.Context, data []byte, filename string) ([]schema.Page, error)
}

// Splitter turns normalized pages into overlapping token-bounded chunks
// carrying page and character offset locators.
type Splitter interface {
	Split(ctx context.Context, documentID string, pages []schema.Page) ([]*schema.Chunk, error)
}

// TextEmbedder embeds text content into the text modality space. The
// document and query paths are separate because the underlying model may be
// asymmetric. EmbedDocuments preserves input order and fails atomically: if
// any item cannot be embedded the whole call returns an error identifying
// the failing index, and the caller decides whether to retry items
// individually.
type TextEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ImageEmbedder embeds images and natural-language queries into one shared
// image modality space (a dual-encoder model such as CLIP).
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// AudioEmbedder transcribes an audio file into timed segments and embeds
// each segment into the audio modality space.
type AudioEmbedder interface {
	TranscribeAndEmbed(ctx context.Context, data []byte) ([]schema.SegmentVector, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// VectorIndex is one modality's approximate-nearest-neighbor structure. It
// maps vectors to chunk identifiers and is never the source of truth for
// chunk content. Insert is idempotent by chunk id (same-id insert replaces
// the vector), Remove of an absent id is a no-op, and Query returns at most
// k hits ordered by decreasing similarity under the index's fixed metric.
// Inserts for different ids are safe concurrently; same-id inserts
// serialize to replace semantics.
type VectorIndex interface {
	Insert(ctx context.Context, chunkID string, vector []float32) error
	Remove(ctx context.Context, chunkID string) error
	Query(ctx context.Context, vector []float32, k int) ([]schema.Hit, error)
	Count(ctx context.Context) (int64, error)
	Dimensions() int
	Close() error
}

// ChunkStore is the authoritative store for chunk content and locators,
// addressed by chunk id. Index entries weakly reference it: a lookup miss
// means the chunk is gone and the referencing candidate must be dropped.
type ChunkStore interface {
	Add(ctx context.Context, chunks []*schema.Chunk) error
	Get(ctx context.Context, ids []string) (map[string]*schema.Chunk, error)
	ListByDocument(ctx context.Context, documentID string) ([]*schema.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	Sample(ctx context.Context, limit int) ([]*schema.Chunk, error)
}

// DocumentStore persists document records and their ingestion status.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Document, error)
	List(ctx context.Context, modality, status string) ([]*models.Document, error)
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg string) error
	MarkProcessed(ctx context.Context, id string, chunkCount int, extra []byte) error
	Delete(ctx context.Context, id string) error
}

// Fuser merges per-modality scored candidates into one deterministic
// ranking of at most topK entries.
type Fuser interface {
	Fuse(groups map[schema.Modality][]schema.Candidate, topK int) []schema.Candidate
}

// LLM generates text from a prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
