// Path: internal/storage/status_storage.go
package storage

import (
	"context"
	"errors"

	"viral-scout/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRunStorage is the MongoDB implementation of the RunStorage interface.
type MongoRunStorage struct {
	collection *mongo.Collection
}

// NewMongoRunStorage creates a new storage adapter for run summaries.
func NewMongoRunStorage(db *mongo.Database, collectionName string) *MongoRunStorage {
	return &MongoRunStorage{
		collection: db.Collection(collectionName),
	}
}

// SaveRun implements the RunStorage interface.
func (s *MongoRunStorage) SaveRun(ctx context.Context, run domain.RunSummary) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": run.ID}
	_, err := s.collection.ReplaceOne(ctx, filter, run, opts)
	return err
}

// LastRun implements the RunStorage interface.
func (s *MongoRunStorage) LastRun(ctx context.Context) (*domain.RunSummary, error) {
	var run domain.RunSummary
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	err := s.collection.FindOne(ctx, bson.D{}, opts).Decode(&run)
	if err != nil {
		// If no document is found, nothing has run yet.
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}
