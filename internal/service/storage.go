// Path: internal/service/storage.go
package service

import (
	"context"

	"viral-scout/internal/domain"
)

// HistoryStorage defines the interface for persisting saved videos.
type HistoryStorage interface {
	// Upsert inserts a new record or merges into an existing one, identified by its ID.
	// Counters, description and last-seen are overwritten; terms are unioned.
	Upsert(ctx context.Context, rec domain.HistoryRecord) error

	// BulkUpsert applies Upsert to every record, in order.
	BulkUpsert(ctx context.Context, recs []domain.HistoryRecord) error

	// Delete removes a record. Deleting an absent ID is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteAll clears the history and reports how many records were removed.
	DeleteAll(ctx context.Context) (int64, error)

	// RemoveQueryTerm drops one term from a record's set. Absent IDs are a no-op.
	RemoveQueryTerm(ctx context.Context, id, term string) error

	// FindByID retrieves a single record, or nil when it does not exist.
	FindByID(ctx context.Context, id string) (*domain.HistoryRecord, error)

	ListAll(ctx context.Context) ([]domain.HistoryRecord, error)
}

// RunStorage defines the interface for persisting run summaries.
type RunStorage interface {
	SaveRun(ctx context.Context, run domain.RunSummary) error
	// LastRun returns the most recently started run, or nil if none exists.
	LastRun(ctx context.Context) (*domain.RunSummary, error)
}
