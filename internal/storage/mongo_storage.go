// Path: internal/storage/mongo_storage.go
package storage

import (
	"context"
	"errors"

	"viral-scout/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoHistoryStorage is the MongoDB implementation of the HistoryStorage interface.
// Terms are stored as an array so set membership is handled by $addToSet.
type MongoHistoryStorage struct {
	collection *mongo.Collection
}

// NewMongoHistoryStorage creates a new storage adapter for history records.
func NewMongoHistoryStorage(db *mongo.Database, collectionName string) *MongoHistoryStorage {
	return &MongoHistoryStorage{
		collection: db.Collection(collectionName),
	}
}

// mergeUpdate builds the upsert document: counters, description and
// last-seen are overwritten, terms are unioned, the rest is only written
// on insert.
func mergeUpdate(rec domain.HistoryRecord) bson.M {
	terms := []string(rec.Terms)
	if terms == nil {
		terms = []string{}
	}
	return bson.M{
		"$set": bson.M{
			"views":       rec.Views,
			"subscribers": rec.Subscribers,
			"lastSeen":    rec.LastSeen,
			"description": rec.Description,
		},
		"$setOnInsert": bson.M{
			"title":        rec.Title,
			"thumbnailUrl": rec.ThumbnailURL,
			"publishedAt":  rec.PublishedAt,
		},
		"$addToSet": bson.M{
			"terms": bson.M{"$each": terms},
		},
	}
}

// Upsert implements the HistoryStorage interface.
func (s *MongoHistoryStorage) Upsert(ctx context.Context, rec domain.HistoryRecord) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": rec.ID}
	_, err := s.collection.UpdateOne(ctx, filter, mergeUpdate(rec), opts)
	return err
}

// BulkUpsert implements the HistoryStorage interface.
func (s *MongoHistoryStorage) BulkUpsert(ctx context.Context, recs []domain.HistoryRecord) error {
	if len(recs) == 0 {
		return nil
	}

	writeModels := make([]mongo.WriteModel, len(recs))
	for i, rec := range recs {
		filter := bson.M{"_id": rec.ID}
		writeModels[i] = mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(mergeUpdate(rec)).SetUpsert(true)
	}

	// Ordered, so repeated IDs within one call merge in sequence.
	opts := options.BulkWrite().SetOrdered(true)
	_, err := s.collection.BulkWrite(ctx, writeModels, opts)
	return err
}

// Delete implements the HistoryStorage interface.
func (s *MongoHistoryStorage) Delete(ctx context.Context, id string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteAll implements the HistoryStorage interface.
func (s *MongoHistoryStorage) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// RemoveQueryTerm implements the HistoryStorage interface.
func (s *MongoHistoryStorage) RemoveQueryTerm(ctx context.Context, id, term string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$pull": bson.M{"terms": term}}
	_, err := s.collection.UpdateOne(ctx, filter, update)
	return err
}

// FindByID implements the HistoryStorage interface.
func (s *MongoHistoryStorage) FindByID(ctx context.Context, id string) (*domain.HistoryRecord, error) {
	var rec domain.HistoryRecord
	filter := bson.M{"_id": id}
	err := s.collection.FindOne(ctx, filter).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Return nil, nil if not found
		}
		return nil, err
	}
	return &rec, nil
}

// ListAll implements the HistoryStorage interface.
func (s *MongoHistoryStorage) ListAll(ctx context.Context) ([]domain.HistoryRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	recs := []domain.HistoryRecord{}
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
