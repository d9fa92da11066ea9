package models

// IngestionJob is one unit of asynchronous ingestion work: a document
// already uploaded and stored, waiting to be chunked and indexed. The
// document id is also the Kafka message key, so retries of the same
// document land on the same partition in order.
type IngestionJob struct {
	DocumentID string `json:"document_id"`
}
