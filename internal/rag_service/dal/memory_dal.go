package dal

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"Muninn/internal/models"
	"Muninn/internal/rag/interfaces"
)

// MemoryDocumentDAL is an in-memory DocumentStore used when the service
// runs without a relational database, and by tests.
type MemoryDocumentDAL struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

// NewMemoryDocumentDAL creates an empty in-memory store.
func NewMemoryDocumentDAL() *MemoryDocumentDAL {
	return &MemoryDocumentDAL{docs: make(map[string]*models.Document)}
}

// Create inserts a new document record.
func (dal *MemoryDocumentDAL) Create(ctx context.Context, doc *models.Document) error {
	dal.mu.Lock()
	defer dal.mu.Unlock()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	copied := *doc
	dal.docs[doc.ID] = &copied
	return nil
}

// Get retrieves a document by id. A missing id returns (nil, nil).
func (dal *MemoryDocumentDAL) Get(ctx context.Context, id string) (*models.Document, error) {
	dal.mu.RLock()
	defer dal.mu.RUnlock()
	doc, ok := dal.docs[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

// GetByIDs retrieves documents by id. Missing ids are absent from the map.
func (dal *MemoryDocumentDAL) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Document, error) {
	dal.mu.RLock()
	defer dal.mu.RUnlock()
	out := make(map[string]*models.Document, len(ids))
	for _, id := range ids {
		if doc, ok := dal.docs[id]; ok {
			copied := *doc
			out[id] = &copied
		}
	}
	return out, nil
}

// List returns documents newest first, optionally filtered by modality
// and status.
func (dal *MemoryDocumentDAL) List(ctx context.Context, modality, status string) ([]*models.Document, error) {
	dal.mu.RLock()
	defer dal.mu.RUnlock()
	var out []*models.Document
	for _, doc := range dal.docs {
		if modality != "" && doc.Modality != modality {
			continue
		}
		if status != "" && string(doc.Status) != status {
			continue
		}
		copied := *doc
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStatus moves a document to the given lifecycle status.
func (dal *MemoryDocumentDAL) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg string) error {
	dal.mu.Lock()
	defer dal.mu.Unlock()
	doc, ok := dal.docs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	doc.Status = status
	doc.Error = errMsg
	return nil
}

// MarkProcessed finalizes a successful ingestion.
func (dal *MemoryDocumentDAL) MarkProcessed(ctx context.Context, id string, chunkCount int, extra []byte) error {
	dal.mu.Lock()
	defer dal.mu.Unlock()
	doc, ok := dal.docs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	doc.Status = models.StatusCompleted
	doc.ChunkCount = chunkCount
	doc.ProcessedAt = &now
	doc.Error = ""
	if len(extra) > 0 {
		doc.Extra = extra
	}
	return nil
}

// Delete removes a document record.
func (dal *MemoryDocumentDAL) Delete(ctx context.Context, id string) error {
	dal.mu.Lock()
	defer dal.mu.Unlock()
	if _, ok := dal.docs[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(dal.docs, id)
	return nil
}

// compile-time check to ensure MemoryDocumentDAL implements the DocumentStore interface
var _ interfaces.DocumentStore = (*MemoryDocumentDAL)(nil)
