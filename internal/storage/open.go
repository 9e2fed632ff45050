// Path: internal/storage/open.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"viral-scout/internal/config"
	"viral-scout/internal/domain"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrUnknownDriver is returned by Open for an unsupported database.driver.
var ErrUnknownDriver = errors.New("unknown database driver")

// Store is the method set every backend provides: video history, run
// summaries and a Close that releases the connection.
type Store interface {
	Upsert(ctx context.Context, rec domain.HistoryRecord) error
	BulkUpsert(ctx context.Context, recs []domain.HistoryRecord) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	RemoveQueryTerm(ctx context.Context, id, term string) error
	FindByID(ctx context.Context, id string) (*domain.HistoryRecord, error)
	ListAll(ctx context.Context) ([]domain.HistoryRecord, error)
	SaveRun(ctx context.Context, run domain.RunSummary) error
	LastRun(ctx context.Context) (*domain.RunSummary, error)
	Close() error
}

// MongoStorage joins the history and run adapters of one database.
type MongoStorage struct {
	*MongoHistoryStorage
	*MongoRunStorage
	client *mongo.Client
}

// OpenMongo connects to MongoDB and binds the configured collections.
func OpenMongo(ctx context.Context, cfg config.DatabaseConfig) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	db := client.Database(cfg.Name)
	return &MongoStorage{
		MongoHistoryStorage: NewMongoHistoryStorage(db, cfg.Collection),
		MongoRunStorage:     NewMongoRunStorage(db, cfg.StatusCollection),
		client:              client,
	}, nil
}

// Close disconnects the client.
func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Open selects a backend by cfg.Driver. For sqlite the URI is a file path;
// maxConns bounds the postgres pool.
func Open(ctx context.Context, cfg config.DatabaseConfig, maxConns int) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case "mongo", "mongodb":
		store, err = OpenMongo(ctx, cfg)
	case "sqlite":
		store, err = OpenSQLite(ctx, cfg.URI)
	case "postgres", "pgx":
		store, err = OpenPostgres(ctx, cfg.URI, maxConns)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
