// Package publisher enqueues ingestion jobs on Kafka. It is the async half
// of the upload flow; the matching consumer lives next door.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	kafkadb "Muninn/internal/database/kafka"
	"Muninn/internal/models"
	"Muninn/internal/rag_service/service"
)

// IngestionPublisher writes ingestion jobs to one Kafka topic.
type IngestionPublisher struct {
	writer *kafka.Writer
}

var _ service.JobQueue = (*IngestionPublisher)(nil)

// NewIngestionPublisher creates a publisher on the given topic using the
// shared Kafka client's broker configuration.
func NewIngestionPublisher(client *kafkadb.KafkaClient, topic string) *IngestionPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      client.Config.Brokers,
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	})
	return &IngestionPublisher{writer: writer}
}

// Enqueue serializes an ingestion job for the document and writes it to
// the topic, keyed by document id.
func (p *IngestionPublisher) Enqueue(ctx context.Context, documentID string) error {
	jsonData, err := json.Marshal(&models.IngestionJob{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion job: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(documentID),
		Value: jsonData,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the underlying writer connection.
func (p *IngestionPublisher) Close() error {
	return p.writer.Close()
}
