//go:build integration

// Path: internal/storage/integration_test.go
package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"viral-scout/internal/config"

	"go.mongodb.org/mongo-driver/bson"
)

func TestMongoContract(t *testing.T) {
	uri := os.Getenv("SCOUT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SCOUT_TEST_MONGO_URI not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := OpenMongo(ctx, config.DatabaseConfig{
		URI:              uri,
		Name:             "viral_scout_test",
		Collection:       "videos",
		StatusCollection: "_runs",
	})
	if err != nil {
		t.Fatalf("OpenMongo: %v", err)
	}
	defer s.Close()

	db := s.client.Database("viral_scout_test")
	for _, c := range []string{"videos", "_runs"} {
		if _, err := db.Collection(c).DeleteMany(ctx, bson.D{}); err != nil {
			t.Fatalf("clearing %s: %v", c, err)
		}
	}

	runStoreContract(t, s)
}

func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv("SCOUT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SCOUT_TEST_PG_DSN not set, skipping integration test")
	}
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer s.Close()
	for _, table := range []string{"videos", "runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clearing %s: %v", table, err)
		}
	}

	runStoreContract(t, s)
}
