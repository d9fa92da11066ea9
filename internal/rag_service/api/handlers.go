// Package api exposes the retrieval service over HTTP. Handlers bind and
// validate the wire shapes, hand off to the service layer and translate
// its typed errors into status codes; no business logic lives here.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"Muninn/internal/models"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
	"Muninn/internal/rag_service/service"
	"Muninn/pkg/logger"
)

// maxUploadBytes caps a single uploaded file.
const maxUploadBytes = 100 << 20 // 100MB

// healthTimeout bounds the whole dependency sweep of one health request.
const healthTimeout = 5 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// API provides the HTTP handlers of the retrieval service.
type API struct {
	service *service.Service
	logger  *logger.Logger
	health  map[string]HealthCheck
}

// NewAPI creates the handler set. health maps dependency names to their
// liveness probes for the /health endpoint.
func NewAPI(service *service.Service, logger *logger.Logger, health map[string]HealthCheck) *API {
	return &API{
		service: service,
		logger:  logger,
		health:  health,
	}
}

// UploadDocumentHandler accepts a text document upload.
func (a *API) UploadDocumentHandler(c *gin.Context) {
	a.upload(c, schema.ModalityText)
}

// UploadImageHandler accepts an image upload.
func (a *API) UploadImageHandler(c *gin.Context) {
	a.upload(c, schema.ModalityImage)
}

// UploadAudioHandler accepts an audio upload.
func (a *API) UploadAudioHandler(c *gin.Context) {
	a.upload(c, schema.ModalityAudio)
}

// upload is the shared multipart flow: read the file, parse the optional
// source_date and hand everything to the service. Responds 202 because
// ingestion continues after the response.
func (a *API) upload(c *gin.Context, modality schema.Modality) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file exceeds the %d byte upload limit", maxUploadBytes)})
		return
	}

	var sourceDate *time.Time
	if raw := c.PostForm("source_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source_date must be RFC 3339"})
			return
		}
		sourceDate = &t
	}

	f, err := header.Open()
	if err != nil {
		a.respondError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		a.respondError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	doc, err := a.service.Upload(c.Request.Context(), service.UploadInput{
		Modality:   modality,
		Filename:   header.Filename,
		Data:       data,
		SourceDate: sourceDate,
	})
	if err != nil {
		a.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, doc)
}

// ListDocumentsHandler lists document records, optionally filtered by the
// modality and status query parameters.
func (a *API) ListDocumentsHandler(c *gin.Context) {
	docs, err := a.service.ListDocuments(c.Request.Context(), c.Query("modality"), c.Query("status"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// GetDocumentHandler returns one document record.
func (a *API) GetDocumentHandler(c *gin.Context) {
	doc, err := a.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocumentHandler deletes a document and everything derived from it.
func (a *API) DeleteDocumentHandler(c *gin.Context) {
	if err := a.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		a.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DocumentChunksHandler returns the stored chunks of one document.
func (a *API) DocumentChunksHandler(c *gin.Context) {
	chunks, err := a.service.DocumentChunks(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chunks)
}

// DocumentContentHandler streams the document's original bytes.
func (a *API) DocumentContentHandler(c *gin.Context) {
	rc, doc, err := a.service.OpenContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	defer rc.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", doc.Filename),
	}
	c.DataFromReader(http.StatusOK, doc.Size, doc.ContentType, rc, extraHeaders)
}

// DocumentDownloadHandler returns a presigned download URL instead of the
// bytes, so large files move between the browser and the object store
// directly.
func (a *API) DocumentDownloadHandler(c *gin.Context) {
	url, err := a.service.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// QueryHandler answers a question against the corpus.
func (a *API) QueryHandler(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	resp, err := a.service.Query(c.Request.Context(), req)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SearchHandler returns ranked chunks without answer generation.
func (a *API) SearchHandler(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	results, err := a.service.Search(c.Request.Context(), req)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// SuggestionsHandler generates follow-up questions from corpus content.
func (a *API) SuggestionsHandler(c *gin.Context) {
	var req models.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	suggestions, err := a.service.Suggest(c.Request.Context(), req)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuggestResponse{Suggestions: suggestions})
}

// HealthHandler probes every registered dependency and reports them
// individually. Any failing dependency turns the overall status degraded
// with a 503.
func (a *API) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(a.health))
	for name, check := range a.health {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps})
}

// respondError maps service and pipeline errors onto HTTP status codes.
func (a *API) respondError(c *gin.Context, err error) {
	var vErr *ragerr.ValidationError
	var tErr *ragerr.GenerationTimeoutError

	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.As(err, &tErr):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": tErr.Error(), "retryable": true})
	default:
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Request failed")
		resp := gin.H{"error": "internal error"}
		if ragerr.Retryable(err) {
			resp["retryable"] = true
		}
		c.JSON(http.StatusInternalServerError, resp)
	}
}
