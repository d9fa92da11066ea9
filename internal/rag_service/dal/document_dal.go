// Package dal provides data access for document records. Chunk content
// lives in the chunk store and vectors in the indexes; the tables here
// carry upload metadata and ingestion status, and drive cascade deletion.
package dal

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"Muninn/internal/models"
	"Muninn/internal/rag/interfaces"
)

// DocumentDAL persists document records in MySQL through GORM.
type DocumentDAL struct {
	db *gorm.DB
}

// NewDocumentDAL creates a new DocumentDAL and ensures the schema exists.
func NewDocumentDAL(db *gorm.DB) (*DocumentDAL, error) {
	if err := db.AutoMigrate(&models.Document{}); err != nil {
		return nil, err
	}
	return &DocumentDAL{db: db}, nil
}

// Create inserts a new document record.
func (dal *DocumentDAL) Create(ctx context.Context, doc *models.Document) error {
	return dal.db.WithContext(ctx).Create(doc).Error
}

// Get retrieves a document by id. A missing id returns (nil, nil).
func (dal *DocumentDAL) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	result := dal.db.WithContext(ctx).Where("id = ?", id).First(&doc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &doc, nil
}

// GetByIDs retrieves documents by id. Missing ids are absent from the map.
func (dal *DocumentDAL) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Document, error) {
	if len(ids) == 0 {
		return map[string]*models.Document{}, nil
	}
	var docs []*models.Document
	result := dal.db.WithContext(ctx).Where("id IN ?", ids).Find(&docs)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make(map[string]*models.Document, len(docs))
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

// List returns documents newest first, optionally filtered by modality
// and status. Empty filter values match everything.
func (dal *DocumentDAL) List(ctx context.Context, modality, status string) ([]*models.Document, error) {
	query := dal.db.WithContext(ctx)
	if modality != "" {
		query = query.Where("modality = ?", modality)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var docs []*models.Document
	result := query.Order("uploaded_at DESC, id").Find(&docs)
	if result.Error != nil {
		return nil, result.Error
	}
	return docs, nil
}

// UpdateStatus moves a document to the given lifecycle status. errMsg is
// recorded for failed documents and cleared otherwise.
func (dal *DocumentDAL) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg string) error {
	result := dal.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": status,
		"error":  errMsg,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkProcessed finalizes a successful ingestion: status becomes
// completed, the chunk count and extracted metadata are recorded, and the
// processing timestamp is set.
func (dal *DocumentDAL) MarkProcessed(ctx context.Context, id string, chunkCount int, extra []byte) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.StatusCompleted,
		"chunk_count":  chunkCount,
		"processed_at": &now,
		"error":        "",
	}
	if len(extra) > 0 {
		updates["extra"] = extra
	}
	result := dal.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a document record. Deleting an unknown id reports
// gorm.ErrRecordNotFound so the API layer can answer 404.
func (dal *DocumentDAL) Delete(ctx context.Context, id string) error {
	result := dal.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// compile-time check to ensure DocumentDAL implements the DocumentStore interface
var _ interfaces.DocumentStore = (*DocumentDAL)(nil)
