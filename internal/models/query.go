package models

import (
	"time"

	"Muninn/internal/rag/schema"
)

// StructuredFilters narrows a query to documents matching metadata
// constraints. Zero values mean "no constraint". Dates compare against the
// document's source date when the uploader supplied one, the upload time
// otherwise.
type StructuredFilters struct {
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	MinSize  int64      `json:"min_size,omitempty" binding:"omitempty,min=0"`
	MaxSize  int64      `json:"max_size,omitempty" binding:"omitempty,min=0"`
}

// QueryRequest is the question-answering entry point.
type QueryRequest struct {
	Question    string             `json:"question" binding:"required"`
	TopK        int                `json:"top_k" binding:"omitempty,min=1,max=50"`
	Modalities  []string           `json:"modalities" binding:"omitempty,dive,oneof=text image audio"`
	DocumentIDs []string           `json:"document_ids,omitempty"`
	Filters     *StructuredFilters `json:"filters,omitempty"`
}

// Citation binds one marker from the generated answer back to its source.
// Optional locator fields follow the citation's modality: Page for text,
// StartTime/EndTime for audio, URL for a viewable image.
type Citation struct {
	ID         int      `json:"id"`
	Type       string   `json:"type"`
	Source     string   `json:"source"`
	DocumentID string   `json:"document_id"`
	Page       *int     `json:"page,omitempty"`
	StartTime  *float64 `json:"start_time,omitempty"`
	EndTime    *float64 `json:"end_time,omitempty"`
	URL        string   `json:"url,omitempty"`
	Similarity float64  `json:"similarity"`
	Content    string   `json:"content"`
}

// ContextUsed counts what was actually forwarded to answer generation.
type ContextUsed struct {
	TextChunks    int `json:"text_chunks"`
	Images        int `json:"images"`
	AudioSegments int `json:"audio_segments"`
}

// QueryResponse is the answer together with everything a result-rendering
// layer needs without further lookups. UnresolvedMarkers lists citation
// numbers the generator used that map to nothing in the supplied context.
type QueryResponse struct {
	Answer            string      `json:"answer"`
	Citations         []Citation  `json:"citations"`
	ContextUsed       ContextUsed `json:"context_used"`
	UnresolvedMarkers []int       `json:"unresolved_markers,omitempty"`
}

// SearchRequest asks for raw ranked chunks without answer generation.
type SearchRequest struct {
	Query    string `json:"query" binding:"required"`
	Modality string `json:"modality" binding:"omitempty,oneof=text image audio"`
	TopK     int    `json:"top_k" binding:"omitempty,min=1,max=50"`
}

// SearchResult is one enriched chunk hit.
type SearchResult struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Modality   string         `json:"modality"`
	Seq        int            `json:"seq"`
	Content    string         `json:"content"`
	Similarity float64        `json:"similarity"`
	Locator    schema.Locator `json:"locator"`
}

// SuggestRequest asks for follow-up question suggestions, optionally scoped
// to one document.
type SuggestRequest struct {
	DocumentID string `json:"document_id,omitempty"`
}

// SuggestResponse carries generated question suggestions.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}
