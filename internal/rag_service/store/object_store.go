// Package store keeps raw uploaded content in MinIO. The rest of the
// system only ever sees opaque object names: the document table records
// the name, retrieval resolves it back to bytes or a presigned URL.
package store

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"Muninn/internal/models"
	"Muninn/internal/rag/schema"
	"Muninn/pkg/logger"
)

// presignExpiry bounds how long a generated download link stays valid.
const presignExpiry = 15 * time.Minute

// ObjectStore uploads, streams and removes content objects in a single
// MinIO bucket. Objects are grouped by modality prefix so that bucket
// listings stay navigable: documents/, images/, audio/.
type ObjectStore struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewObjectStore wraps a connected MinIO client. The bucket is created on
// first use if it does not exist yet.
func NewObjectStore(ctx context.Context, client *minio.Client, bucket string, log *logger.Logger) (*ObjectStore, error) {
	s := &ObjectStore{client: client, bucket: bucket, log: log}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Put stores the content of r under a fresh object name and returns that
// name. The original filename only contributes its extension; the name is
// a UUID so concurrent uploads of identically named files never collide.
func (s *ObjectStore) Put(ctx context.Context, modality schema.Modality, filename string, r io.Reader, size int64, contentType string) (string, error) {
	objectName := fmt.Sprintf("%s/%s%s", objectPrefix(modality), uuid.New().String(), filepath.Ext(filename))

	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object to MinIO: %w", err)
	}

	return objectName, nil
}

// Get opens the stored object for reading. The returned reader must be
// closed by the caller. A missing object surfaces as an error here rather
// than on first read.
func (s *ObjectStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from MinIO: %w", err)
	}
	// GetObject is lazy; Stat forces the first round trip so that a
	// missing object fails here instead of midway through streaming.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat object %q: %w", objectName, err)
	}
	return obj, nil
}

// PresignURL returns a time-limited download URL for the object. The
// download filename is restored from the document record so the browser
// does not save a bare UUID.
func (s *ObjectStore) PresignURL(ctx context.Context, objectName, downloadName string) (string, error) {
	reqParams := make(url.Values)
	if downloadName != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, presignExpiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign object %q: %w", objectName, err)
	}
	return u.String(), nil
}

// Remove deletes the stored object. Removing a name that no longer exists
// is not an error; deletion is idempotent.
func (s *ObjectStore) Remove(ctx context.Context, objectName string) error {
	if objectName == "" {
		return nil
	}
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to remove object %q: %w", objectName, err)
	}
	return nil
}

// ResolveURL produces a short-lived URL for a document's stored object,
// or "" when no link can be produced. Citations use this for image
// sources; a broken link there must not fail the whole answer.
func (s *ObjectStore) ResolveURL(doc *models.Document) string {
	if doc == nil || doc.ObjectName == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, err := s.PresignURL(ctx, doc.ObjectName, doc.Filename)
	if err != nil {
		s.log.Warn(fmt.Sprintf("could not presign object %s: %v", doc.ObjectName, err))
		return ""
	}
	return u
}

// ensureBucket checks that the configured bucket exists and creates it
// when missing.
func (s *ObjectStore) ensureBucket(ctx context.Context) error {
	found, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket '%s' exists: %w", s.bucket, err)
	}
	if !found {
		s.log.Info(fmt.Sprintf("Bucket '%s' not found, creating it.", s.bucket))
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket '%s': %w", s.bucket, err)
		}
	}
	return nil
}

// objectPrefix maps a modality onto its storage prefix.
func objectPrefix(m schema.Modality) string {
	switch m {
	case schema.ModalityImage:
		return "images"
	case schema.ModalityAudio:
		return "audio"
	default:
		return "documents"
	}
}
