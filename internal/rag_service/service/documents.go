package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"Muninn/internal/models"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
)

// ErrDocumentNotFound marks lookups of ids with no document record. The
// HTTP layer maps it to 404.
var ErrDocumentNotFound = errors.New("document not found")

// ListDocuments returns document records, optionally filtered by modality
// and status.
func (s *Service) ListDocuments(ctx context.Context, modality, status string) ([]*models.Document, error) {
	if modality != "" && !schema.Modality(modality).Valid() {
		return nil, ragerr.NewValidation("modality", "unknown modality %q", modality)
	}
	if status != "" && !validStatus(status) {
		return nil, ragerr.NewValidation("status", "unknown status %q", status)
	}

	docs, err := s.docs.List(ctx, modality, status)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	return docs, nil
}

// GetDocument returns one document record.
func (s *Service) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// DocumentChunks returns the stored chunks of one document in sequence
// order.
func (s *Service) DocumentChunks(ctx context.Context, id string) ([]*schema.Chunk, error) {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return nil, err
	}

	chunks, err := s.chunks.ListByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []*schema.Chunk{}
	}
	return chunks, nil
}

// OpenContent opens the document's stored bytes for streaming. The caller
// closes the reader.
func (s *Service) OpenContent(ctx context.Context, id string) (io.ReadCloser, *models.Document, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.objects.Get(ctx, doc.ObjectName)
	if err != nil {
		return nil, nil, fmt.Errorf("open content of document %s: %w", id, err)
	}
	return rc, doc, nil
}

// DownloadURL returns a presigned, time-limited URL for the document's
// stored object.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return s.objects.PresignURL(ctx, doc.ObjectName, doc.Filename)
}

// DeleteDocument removes a document and everything derived from it:
// vectors, chunks, the stored object and finally the record itself. The
// record goes last so a partial failure stays discoverable and the
// operation can be retried.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	if err := s.indexing.RemoveDocument(ctx, id); err != nil {
		return fmt.Errorf("remove chunks of document %s: %w", id, err)
	}
	if err := s.objects.Remove(ctx, doc.ObjectName); err != nil {
		s.log.Warn(fmt.Sprintf("could not remove object %s of document %s: %v", doc.ObjectName, id, err))
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document record %s: %w", id, err)
	}

	s.log.Info(fmt.Sprintf("Deleted document %s (%s)", id, doc.Filename))
	return nil
}

// validStatus reports whether status names a known lifecycle state.
func validStatus(status string) bool {
	switch models.DocumentStatus(status) {
	case models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed:
		return true
	}
	return false
}
