package models

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentStatus tracks a document through its ingestion lifecycle.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"    // uploaded, not yet picked up
	StatusProcessing DocumentStatus = "processing" // chunking and indexing in progress
	StatusCompleted  DocumentStatus = "completed"  // all chunks indexed and queryable
	StatusFailed     DocumentStatus = "failed"     // ingestion aborted, Error holds the reason
)

// Document represents one uploaded source file and its ingestion state.
// The row is created at upload time with status pending and is the
// authoritative record for cascade deletion of chunks and vectors.
type Document struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	Modality    string         `gorm:"index;not null;size:16" json:"modality"`
	Filename    string         `gorm:"not null;size:512" json:"filename"`
	Size        int64          `gorm:"not null" json:"size"`
	ContentType string         `gorm:"size:128" json:"content_type"`
	ObjectName  string         `gorm:"not null;size:512" json:"-"` // storage locator, opaque to callers
	Status      DocumentStatus `gorm:"index;not null;size:16" json:"status"`
	Error       string         `gorm:"size:1024" json:"error,omitempty"`
	ChunkCount  int            `json:"chunk_count"`
	SourceDate  *time.Time     `json:"source_date,omitempty"` // original file date supplied by the uploader
	Extra       datatypes.JSON `json:"extra,omitempty"`       // metadata extracted during ingestion
	UploadedAt  time.Time      `gorm:"autoCreateTime" json:"uploaded_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

// TableName keeps the table name singular-free and explicit.
func (Document) TableName() string { return "documents" }

// FilterDate returns the timestamp date filters apply to: the uploader
// supplied source date when present, the upload time otherwise.
func (d *Document) FilterDate() time.Time {
	if d.SourceDate != nil {
		return *d.SourceDate
	}
	return d.UploadedAt
}
