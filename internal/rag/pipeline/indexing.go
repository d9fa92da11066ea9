// Package pipeline wires the retrieval engine's components into the
// ingestion and query flows the service exposes. Each pipeline owns no
// state of its own beyond its collaborators, so concurrent requests stay
// fully isolated.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
	"Muninn/pkg/logger"
)

const (
	// defaultEmbedWorkers bounds the embed-and-index worker pool.
	defaultEmbedWorkers = 4
	// defaultEmbedBatch is how many chunks one embedding call carries.
	defaultEmbedBatch = 32
)

// IndexingPipeline drives ingestion: split, embed, store, index. Chunking
// is sequential because offsets accumulate; the embed-and-index step runs
// on a bounded worker pool since chunks are independent once cut.
type IndexingPipeline struct {
	splitter      interfaces.Splitter
	textEmbedder  interfaces.TextEmbedder
	imageEmbedder interfaces.ImageEmbedder
	audioEmbedder interfaces.AudioEmbedder
	chunkStore    interfaces.ChunkStore
	indexes       map[schema.Modality]interfaces.VectorIndex
	log           *logger.Logger
	workers       int
	batchSize     int
}

// NewIndexingPipeline creates a new IndexingPipeline. workers bounds the
// embedding pool; zero selects the default.
func NewIndexingPipeline(
	splitter interfaces.Splitter,
	textEmbedder interfaces.TextEmbedder,
	imageEmbedder interfaces.ImageEmbedder,
	audioEmbedder interfaces.AudioEmbedder,
	chunkStore interfaces.ChunkStore,
	indexes map[schema.Modality]interfaces.VectorIndex,
	log *logger.Logger,
	workers int,
) *IndexingPipeline {
	if workers <= 0 {
		workers = defaultEmbedWorkers
	}
	return &IndexingPipeline{
		splitter:      splitter,
		textEmbedder:  textEmbedder,
		imageEmbedder: imageEmbedder,
		audioEmbedder: audioEmbedder,
		chunkStore:    chunkStore,
		indexes:       indexes,
		log:           log,
		workers:       workers,
		batchSize:     defaultEmbedBatch,
	}
}

// IngestText chunks the pages, embeds every chunk and indexes the vectors.
// Returns the number of chunks produced. Empty pages produce zero chunks
// and no error.
func (p *IndexingPipeline) IngestText(ctx context.Context, documentID string, pages []schema.Page) (int, error) {
	index, err := p.indexFor(schema.ModalityText)
	if err != nil {
		return 0, err
	}

	chunks, err := p.splitter.Split(ctx, documentID, pages)
	if err != nil {
		return 0, fmt.Errorf("split document %s: %w", documentID, err)
	}
	if len(chunks) == 0 {
		p.log.Info(fmt.Sprintf("Document %s produced no chunks, nothing to index", documentID))
		return 0, nil
	}
	p.log.Info(fmt.Sprintf("Document %s split into %d chunks", documentID, len(chunks)))

	// The store is authoritative, so it is written before the index: a
	// stored chunk without a vector is merely unretrievable, while an
	// indexed id without a chunk is an inconsistency every query would
	// have to skip around.
	if err := p.chunkStore.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks for document %s: %w", documentID, err)
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		eg.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}
			vectors, err := p.textEmbedder.EmbedDocuments(gCtx, texts)
			if err != nil {
				return err
			}
			for i, c := range batch {
				if err := index.Insert(gCtx, c.ID, vectors[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, fmt.Errorf("embed and index document %s: %w", documentID, err)
	}

	p.log.Info(fmt.Sprintf("Document %s fully indexed: %d text chunks", documentID, len(chunks)))
	return len(chunks), nil
}

// IngestImage embeds one image as a single chunk. placeholder is the short
// text stored as the chunk's content, typically derived from the filename;
// the retrievable signal is the vector, not the text.
func (p *IndexingPipeline) IngestImage(ctx context.Context, documentID string, data []byte, placeholder string) (int, error) {
	index, err := p.indexFor(schema.ModalityImage)
	if err != nil {
		return 0, err
	}

	vector, err := p.imageEmbedder.EmbedImage(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("embed image %s: %w", documentID, err)
	}

	chunk := &schema.Chunk{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Modality:   schema.ModalityImage,
		Seq:        0,
		Content:    placeholder,
	}
	if err := p.chunkStore.Add(ctx, []*schema.Chunk{chunk}); err != nil {
		return 0, fmt.Errorf("store image chunk for %s: %w", documentID, err)
	}
	if err := index.Insert(ctx, chunk.ID, vector); err != nil {
		return 0, fmt.Errorf("index image chunk for %s: %w", documentID, err)
	}

	p.log.Info(fmt.Sprintf("Document %s indexed as one image chunk", documentID))
	return 1, nil
}

// IngestAudio transcribes the audio, embeds every merged segment and
// indexes them as timed chunks. Audio with no recognizable speech
// produces zero chunks and no error.
func (p *IndexingPipeline) IngestAudio(ctx context.Context, documentID string, data []byte) (int, error) {
	index, err := p.indexFor(schema.ModalityAudio)
	if err != nil {
		return 0, err
	}

	segments, err := p.audioEmbedder.TranscribeAndEmbed(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("transcribe document %s: %w", documentID, err)
	}
	if len(segments) == 0 {
		p.log.Info(fmt.Sprintf("Document %s contains no recognizable speech", documentID))
		return 0, nil
	}

	chunks := make([]*schema.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = &schema.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Modality:   schema.ModalityAudio,
			Seq:        i,
			Content:    seg.Text,
			Locator: schema.Locator{
				StartSec: seg.StartSec,
				EndSec:   seg.EndSec,
			},
		}
	}
	if err := p.chunkStore.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store audio chunks for %s: %w", documentID, err)
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)
	for i := range chunks {
		chunk, vector := chunks[i], segments[i].Vector
		eg.Go(func() error {
			return index.Insert(gCtx, chunk.ID, vector)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, fmt.Errorf("index audio chunks for %s: %w", documentID, err)
	}

	p.log.Info(fmt.Sprintf("Document %s indexed as %d audio segments", documentID, len(chunks)))
	return len(chunks), nil
}

// RemoveDocument cascades a document deletion: every chunk's vector leaves
// its modality index, then the chunks leave the store. Removal keeps going
// past individual index errors so one failing entry cannot strand the
// rest; the first error is reported after the sweep.
func (p *IndexingPipeline) RemoveDocument(ctx context.Context, documentID string) error {
	chunks, err := p.chunkStore.ListByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list chunks for document %s: %w", documentID, err)
	}

	var firstErr error
	for _, chunk := range chunks {
		index, ok := p.indexes[chunk.Modality]
		if !ok {
			continue
		}
		if err := index.Remove(ctx, chunk.ID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove chunk %s from %s index: %w", chunk.ID, chunk.Modality, err)
		}
	}
	if err := p.chunkStore.DeleteByDocument(ctx, documentID); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("delete chunks for document %s: %w", documentID, err)
	}
	if firstErr != nil {
		return firstErr
	}

	p.log.Info(fmt.Sprintf("Document %s removed from store and indexes (%d chunks)", documentID, len(chunks)))
	return nil
}

func (p *IndexingPipeline) indexFor(modality schema.Modality) (interfaces.VectorIndex, error) {
	index, ok := p.indexes[modality]
	if !ok || index == nil {
		return nil, fmt.Errorf("no vector index configured for modality %s", modality)
	}
	return index, nil
}
