package schema

// Modality identifies the content type of a document or chunk. The set is
// closed: every component that branches on it handles all three cases.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// Valid reports whether m is one of the three known modalities.
func (m Modality) Valid() bool {
	switch m {
	case ModalityText, ModalityImage, ModalityAudio:
		return true
	}
	return false
}

// Priority returns the rank used to break score ties between modalities.
// Lower is stronger: text beats image beats audio.
func (m Modality) Priority() int {
	switch m {
	case ModalityText:
		return 0
	case ModalityImage:
		return 1
	default:
		return 2
	}
}

// AllModalities lists every known modality in priority order.
func AllModalities() []Modality {
	return []Modality{ModalityText, ModalityImage, ModalityAudio}
}

// Page is one unit of normalized text produced by a Loader. Loaders that
// read unpaged formats emit a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// Locator addresses a chunk inside its source document. Which fields are
// meaningful depends on the chunk's modality: text chunks carry Page and the
// character offset range, audio chunks carry the start/end seconds of their
// transcript segment, image chunks carry nothing beyond the document itself.
// The locator must be enough to render a human-readable citation without
// re-reading the original file.
type Locator struct {
	Page      int     `json:"page,omitempty" bson:"page,omitempty"`
	CharStart int     `json:"char_start,omitempty" bson:"char_start,omitempty"`
	CharEnd   int     `json:"char_end,omitempty" bson:"char_end,omitempty"`
	StartSec  float64 `json:"start_sec,omitempty" bson:"start_sec,omitempty"`
	EndSec    float64 `json:"end_sec,omitempty" bson:"end_sec,omitempty"`
}

// Chunk is one retrievable unit derived from a document. Chunks are created
// during ingestion and immutable afterwards; a changed source produces new
// chunks, never an update in place.
type Chunk struct {
	// ID is the unique, stable identifier of this chunk.
	ID string `json:"id" bson:"_id"`

	// DocumentID is the identifier of the owning document.
	DocumentID string `json:"document_id" bson:"document_id"`

	// Modality determines the embedding space and the locator shape.
	Modality Modality `json:"modality" bson:"modality"`

	// Seq is the zero-based position of the chunk within its document.
	Seq int `json:"seq" bson:"seq"`

	// Content is the retrievable text: the text span itself, the transcript
	// of an audio segment, or a short placeholder describing an image.
	Content string `json:"content" bson:"content"`

	// TokenCount is the tokenizer-measured length of Content.
	TokenCount int `json:"token_count" bson:"token_count"`

	Locator Locator `json:"locator" bson:"locator"`
}

// Hit is one result from a vector index query.
type Hit struct {
	ChunkID string
	Score   float32
}

// Candidate is a hit resolved against the chunk store. Score carries the raw
// index similarity; Norm is filled by fusion with the per-query normalized
// score used for the final ordering.
type Candidate struct {
	Chunk *Chunk
	Score float32
	Norm  float64
}

// SegmentVector is one transcribed audio segment together with its
// embedding, as returned by the audio model adapter.
type SegmentVector struct {
	Text     string
	StartSec float64
	EndSec   float64
	Vector   []float32
}
