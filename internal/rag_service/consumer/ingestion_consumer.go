// Package consumer drains the ingestion topic and drives documents through
// the ingestion pipeline. One consumer group shares the work across
// replicas; the document's status row records the outcome either way.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"Muninn/internal/models"
	"Muninn/internal/rag_service/service"
	"Muninn/pkg/logger"
)

// jobTimeout bounds one consumed ingestion run.
const jobTimeout = 10 * time.Minute

// IngestionConsumer consumes ingestion jobs and runs them on the service.
type IngestionConsumer struct {
	reader *kafka.Reader
	svc    *service.Service
	logger *logger.Logger
}

// NewIngestionConsumer creates a consumer in the given group.
func NewIngestionConsumer(brokers []string, topic, groupID string, svc *service.Service, logger *logger.Logger) *IngestionConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &IngestionConsumer{
		reader: reader,
		svc:    svc,
		logger: logger,
	}
}

// Start begins consuming ingestion jobs until the context is cancelled.
// Messages are committed even when handling fails: a failed run marks the
// document failed, and replaying a poison message would wedge the
// partition without fixing anything.
func (c *IngestionConsumer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping ingestion consumer...")
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() == nil {
						c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error fetching message from Kafka")
					}
					continue
				}

				if err := c.handle(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
						"topic":     msg.Topic,
						"partition": msg.Partition,
						"offset":    msg.Offset,
					}).Error("Error handling ingestion job")
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit Kafka message")
				}
			}
		}
	}()
}

// handle decodes one job and runs ingestion with a per-job deadline.
func (c *IngestionConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var job models.IngestionJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return fmt.Errorf("unmarshal ingestion job: %w", err)
	}
	if job.DocumentID == "" {
		return fmt.Errorf("ingestion job without document_id")
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	return c.svc.Ingest(jobCtx, job.DocumentID)
}

// Close closes the underlying Kafka reader.
func (c *IngestionConsumer) Close() error {
	return c.reader.Close()
}
