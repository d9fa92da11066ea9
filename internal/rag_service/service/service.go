// Package service orchestrates the document lifecycle and the query flows.
// Handlers stay thin: every decision about storing, ingesting, retrieving,
// answering and citing lives here, behind plain Go types.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"Muninn/internal/models"
	"Muninn/internal/rag/citations"
	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/loaders"
	"Muninn/internal/rag/pipeline"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
	"Muninn/internal/rag_service/metadata"
	"Muninn/internal/rag_service/store"
	"Muninn/pkg/logger"
)

// ingestTimeout bounds one in-process ingestion run. Kafka-driven runs get
// the same bound from the consumer.
const ingestTimeout = 10 * time.Minute

// JobQueue hands a document id to the asynchronous ingestion path. A nil
// queue makes uploads ingest in-process on a goroutine.
type JobQueue interface {
	Enqueue(ctx context.Context, documentID string) error
}

// Deps collects everything the service orchestrates. All fields except
// Queue are required.
type Deps struct {
	Documents interfaces.DocumentStore
	Chunks    interfaces.ChunkStore
	Objects   *store.ObjectStore
	Indexing  *pipeline.IndexingPipeline
	Retrieval *pipeline.RetrievalPipeline
	Assembler *pipeline.ContextAssembler
	QA        *pipeline.QAPipeline
	Suggest   *pipeline.SuggestionsPipeline
	Binder    *citations.Binder
	Queue     JobQueue
	TopK      int
	Log       *logger.Logger
}

// Service is the orchestration layer between the HTTP handlers and the
// retrieval engine.
type Service struct {
	docs      interfaces.DocumentStore
	chunks    interfaces.ChunkStore
	objects   *store.ObjectStore
	indexing  *pipeline.IndexingPipeline
	retrieval *pipeline.RetrievalPipeline
	assembler *pipeline.ContextAssembler
	qa        *pipeline.QAPipeline
	suggest   *pipeline.SuggestionsPipeline
	binder    *citations.Binder
	queue     JobQueue
	topK      int
	log       *logger.Logger
}

// New creates the service from its dependencies.
func New(d Deps) *Service {
	return &Service{
		docs:      d.Documents,
		chunks:    d.Chunks,
		objects:   d.Objects,
		indexing:  d.Indexing,
		retrieval: d.Retrieval,
		assembler: d.Assembler,
		qa:        d.QA,
		suggest:   d.Suggest,
		binder:    d.Binder,
		queue:     d.Queue,
		topK:      d.TopK,
		log:       d.Log,
	}
}

// UploadInput is one file handed over by an upload endpoint. Data is the
// full file content; loaders and embedders need it buffered anyway.
type UploadInput struct {
	Modality   schema.Modality
	Filename   string
	Data       []byte
	SourceDate *time.Time
}

// Upload validates the file, stores its bytes, records the document as
// pending and dispatches ingestion. Validation failures reject the upload
// before anything is written.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Document, error) {
	contentType, err := validateUpload(in.Modality, in.Filename, in.Data)
	if err != nil {
		return nil, err
	}

	objectName, err := s.objects.Put(ctx, in.Modality, in.Filename, bytes.NewReader(in.Data), int64(len(in.Data)), contentType)
	if err != nil {
		return nil, fmt.Errorf("store upload %q: %w", in.Filename, err)
	}

	doc := &models.Document{
		ID:          uuid.New().String(),
		Modality:    string(in.Modality),
		Filename:    in.Filename,
		Size:        int64(len(in.Data)),
		ContentType: contentType,
		ObjectName:  objectName,
		Status:      models.StatusPending,
		SourceDate:  in.SourceDate,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// The record is the source of truth; without it the object is
		// unreachable, so clean it up.
		if rerr := s.objects.Remove(ctx, objectName); rerr != nil {
			s.log.Warn(fmt.Sprintf("orphaned object %s after failed create: %v", objectName, rerr))
		}
		return nil, fmt.Errorf("create document record: %w", err)
	}

	s.log.Info(fmt.Sprintf("Uploaded %s document %s (%s, %d bytes)", doc.Modality, doc.ID, doc.Filename, doc.Size))
	s.dispatchIngestion(doc.ID)
	return doc, nil
}

// dispatchIngestion routes a freshly uploaded document into ingestion:
// through the queue when one is configured, otherwise on a goroutine.
func (s *Service) dispatchIngestion(documentID string) {
	if s.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.queue.Enqueue(ctx, documentID); err != nil {
			s.log.WithError(models.ErrorInfo{Message: err.Error()}).Error(fmt.Sprintf("Failed to enqueue ingestion for document %s", documentID))
			if uerr := s.docs.UpdateStatus(ctx, documentID, models.StatusFailed, "failed to enqueue ingestion: "+err.Error()); uerr != nil {
				s.log.Warn(fmt.Sprintf("could not mark document %s failed: %v", documentID, uerr))
			}
		}
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if err := s.Ingest(ctx, documentID); err != nil {
			s.log.WithError(models.ErrorInfo{Message: err.Error()}).Error(fmt.Sprintf("In-process ingestion failed for document %s", documentID))
		}
	}()
}

// Ingest runs the full ingestion pipeline for one stored document and
// drives its status transitions: processing, then completed or failed.
// Called by the Kafka consumer and by the in-process path alike.
func (s *Service) Ingest(ctx context.Context, documentID string) error {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc == nil {
		return fmt.Errorf("document %s not found", documentID)
	}

	if err := s.docs.UpdateStatus(ctx, doc.ID, models.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark document %s processing: %w", doc.ID, err)
	}

	count, extra, err := s.runIngestion(ctx, doc)
	if err != nil {
		s.log.WithError(models.ErrorInfo{Message: err.Error()}).Error(fmt.Sprintf("Ingestion failed for document %s", doc.ID))
		if uerr := s.docs.UpdateStatus(ctx, doc.ID, models.StatusFailed, err.Error()); uerr != nil {
			s.log.Warn(fmt.Sprintf("could not mark document %s failed: %v", doc.ID, uerr))
		}
		return err
	}

	if err := s.docs.MarkProcessed(ctx, doc.ID, count, extra); err != nil {
		return fmt.Errorf("mark document %s processed: %w", doc.ID, err)
	}
	s.log.Info(fmt.Sprintf("✅ Document %s ingested: %d chunks", doc.ID, count))
	return nil
}

// runIngestion loads the stored bytes and runs the modality's pipeline.
// Returns the chunk count and, for text, extracted metadata as JSON.
func (s *Service) runIngestion(ctx context.Context, doc *models.Document) (int, []byte, error) {
	rc, err := s.objects.Get(ctx, doc.ObjectName)
	if err != nil {
		return 0, nil, fmt.Errorf("open stored object: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return 0, nil, fmt.Errorf("read stored object: %w", err)
	}

	switch schema.Modality(doc.Modality) {
	case schema.ModalityText:
		loader, err := loaders.ForFilename(doc.Filename)
		if err != nil {
			return 0, nil, err
		}
		pages, err := loader.Load(ctx, data, doc.Filename)
		if err != nil {
			return 0, nil, fmt.Errorf("load %s: %w", doc.Filename, err)
		}

		extra := s.extractMetadata(doc.Filename, pages)

		count, err := s.indexing.IngestText(ctx, doc.ID, pages)
		if err != nil {
			return 0, nil, err
		}
		return count, extra, nil

	case schema.ModalityImage:
		count, err := s.indexing.IngestImage(ctx, doc.ID, data, "Image: "+doc.Filename)
		return count, nil, err

	case schema.ModalityAudio:
		count, err := s.indexing.IngestAudio(ctx, doc.ID, data)
		return count, nil, err
	}
	return 0, nil, ragerr.NewValidation("modality", "unknown modality %q", doc.Modality)
}

// extractMetadata scans the document text for structured entities and
// returns them as JSON for the document's extra column, or nil when
// nothing was found.
func (s *Service) extractMetadata(filename string, pages []schema.Page) []byte {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}

	meta := metadata.Extract(b.String())
	if meta.IsEmpty() {
		return nil
	}

	s.log.Info(fmt.Sprintf("[Extracted Metadata from %s]\n%s", filename, meta.Summary()))
	extra, err := json.Marshal(meta)
	if err != nil {
		s.log.Warn(fmt.Sprintf("could not marshal metadata for %s: %v", filename, err))
		return nil
	}
	return extra
}

// Query answers a question against the indexed corpus: retrieve, assemble,
// generate, bind citations. Zero retrieved context short-circuits to an
// explicit no-context answer instead of asking the model to improvise.
func (s *Service) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	// An omitted modality list means "search everything".
	mods := schema.AllModalities()
	if len(req.Modalities) > 0 {
		mods = make([]schema.Modality, 0, len(req.Modalities))
		for _, m := range req.Modalities {
			mods = append(mods, schema.Modality(m))
		}
	}

	ranked, err := s.retrieval.Run(ctx, pipeline.RetrievalRequest{
		Query:       req.Question,
		TopK:        topK,
		Modalities:  mods,
		DocumentIDs: req.DocumentIDs,
		Filters:     req.Filters,
	})
	if err != nil {
		return nil, err
	}

	assembled := s.assembler.Assemble(ranked)
	if assembled.Empty() {
		return &models.QueryResponse{
			Answer:    pipeline.NoContextAnswer,
			Citations: []models.Citation{},
		}, nil
	}

	answer, err := s.qa.Answer(ctx, req.Question, assembled.Text)
	if err != nil {
		return nil, err
	}

	// A grounded refusal keeps the model's wording but drops citations
	// and usage counts; the markers support nothing in that case.
	if pipeline.CannotAnswer(answer) {
		return &models.QueryResponse{
			Answer:    answer,
			Citations: []models.Citation{},
		}, nil
	}

	cits, unresolved := s.binder.Bind(answer, assembled.Markers, s.documentsForMarkers(ctx, assembled.Markers))
	if cits == nil {
		cits = []models.Citation{}
	}

	return &models.QueryResponse{
		Answer:            answer,
		Citations:         cits,
		ContextUsed:       assembled.Used,
		UnresolvedMarkers: unresolved,
	}, nil
}

// documentsForMarkers resolves the documents behind the assembled context.
// Lookup failures degrade citations to "Unknown" sources rather than
// failing a query whose answer already exists.
func (s *Service) documentsForMarkers(ctx context.Context, markers map[int]schema.Candidate) map[string]*models.Document {
	seen := make(map[string]bool, len(markers))
	ids := make([]string, 0, len(markers))
	for _, cand := range markers {
		if cand.Chunk == nil || seen[cand.Chunk.DocumentID] {
			continue
		}
		seen[cand.Chunk.DocumentID] = true
		ids = append(ids, cand.Chunk.DocumentID)
	}
	if len(ids) == 0 {
		return nil
	}

	docs, err := s.docs.GetByIDs(ctx, ids)
	if err != nil {
		s.log.Warn(fmt.Sprintf("could not resolve citation documents: %v", err))
		return nil
	}
	return docs
}

// Search returns ranked chunks without answer generation, enriched with
// the owning document's filename.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResult, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	mods := schema.AllModalities()
	if req.Modality != "" {
		mods = []schema.Modality{schema.Modality(req.Modality)}
	}

	ranked, err := s.retrieval.Run(ctx, pipeline.RetrievalRequest{
		Query:      req.Query,
		TopK:       topK,
		Modalities: mods,
	})
	if err != nil {
		return nil, err
	}

	markers := make(map[int]schema.Candidate, len(ranked))
	for i, c := range ranked {
		markers[i] = c
	}
	docs := s.documentsForMarkers(ctx, markers)

	results := make([]models.SearchResult, 0, len(ranked))
	for _, c := range ranked {
		filename := ""
		if d := docs[c.Chunk.DocumentID]; d != nil {
			filename = d.Filename
		}
		results = append(results, models.SearchResult{
			DocumentID: c.Chunk.DocumentID,
			Filename:   filename,
			Modality:   string(c.Chunk.Modality),
			Seq:        c.Chunk.Seq,
			Content:    c.Chunk.Content,
			Similarity: c.Norm,
			Locator:    c.Chunk.Locator,
		})
	}
	return results, nil
}

// Suggest generates follow-up questions from sampled corpus content,
// optionally scoped to one document.
func (s *Service) Suggest(ctx context.Context, req models.SuggestRequest) ([]string, error) {
	suggestions, err := s.suggest.Run(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return suggestions, nil
}
