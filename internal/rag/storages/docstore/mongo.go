package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
)

// MongoChunkStore is a ChunkStore backed by a MongoDB collection. The
// chunk id doubles as the document _id, so writes are naturally idempotent
// per chunk.
type MongoChunkStore struct {
	collection *mongo.Collection
}

// NewMongoChunkStore creates a store over the named collection.
func NewMongoChunkStore(db *mongo.Database, collectionName string) *MongoChunkStore {
	return &MongoChunkStore{
		collection: db.Collection(collectionName),
	}
}

// Add upserts chunks by id. Re-ingesting a document overwrites its old
// chunks instead of failing on duplicate keys.
func (s *MongoChunkStore) Add(ctx context.Context, chunks []*schema.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, len(chunks))
	for i, c := range chunks {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": c.ID}).
			SetReplacement(c).
			SetUpsert(true)
	}
	_, err := s.collection.BulkWrite(ctx, writes)
	return err
}

// Get returns the chunks found for the given ids.
func (s *MongoChunkStore) Get(ctx context.Context, ids []string) (map[string]*schema.Chunk, error) {
	if len(ids) == 0 {
		return map[string]*schema.Chunk{}, nil
	}
	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []*schema.Chunk
	if err = cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	result := make(map[string]*schema.Chunk, len(chunks))
	for _, c := range chunks {
		result[c.ID] = c
	}
	return result, nil
}

// ListByDocument returns a document's chunks in sequence order.
func (s *MongoChunkStore) ListByDocument(ctx context.Context, documentID string) ([]*schema.Chunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"document_id": documentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []*schema.Chunk
	if err = cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// DeleteByDocument removes every chunk belonging to the document.
func (s *MongoChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

// Sample returns up to limit chunks in stable id order.
func (s *MongoChunkStore) Sample(ctx context.Context, limit int) ([]*schema.Chunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []*schema.Chunk
	if err = cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// compile-time check to ensure MongoChunkStore implements the ChunkStore interface
var _ interfaces.ChunkStore = (*MongoChunkStore)(nil)
