// Path: internal/storage/sql_storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"viral-scout/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	video_id     TEXT PRIMARY KEY,
	query_terms  TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	thumbnail    TEXT NOT NULL DEFAULT '',
	views        BIGINT NOT NULL DEFAULT 0,
	subscribers  BIGINT NOT NULL DEFAULT 0,
	published_at TEXT NOT NULL DEFAULT '',
	last_seen    TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	terms        TEXT NOT NULL DEFAULT '',
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL DEFAULT '',
	searched     BIGINT NOT NULL DEFAULT 0,
	unique_count BIGINT NOT NULL DEFAULT 0,
	accepted     BIGINT NOT NULL DEFAULT 0,
	saved        BIGINT NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at);
`

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStorage implements HistoryStorage and RunStorage on SQLite or PostgreSQL.
// Terms are kept as a delimited string and merged in Go inside a transaction.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
	closers []func()
}

// OpenSQLite opens (or creates) a SQLite database at path and creates the tables.
// Pass ":memory:" for an in-memory database (used by tests).
func OpenSQLite(ctx context.Context, path string) (*SQLStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting journal mode: %w", err)
		}
	}

	s := &SQLStorage{db: db, dialect: dialectSQLite}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to PostgreSQL through a pgx pool and creates the tables.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*SQLStorage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &SQLStorage{
		db:      stdlib.OpenDBFromPool(pool),
		dialect: dialectPostgres,
		closers: []func(){pool.Close},
	}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStorage) Close() error {
	err := s.db.Close()
	for _, c := range s.closers {
		c()
	}
	return err
}

func (s *SQLStorage) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStorage) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lockRow is appended to reads that precede a write in the same transaction.
func (s *SQLStorage) lockRow() string {
	if s.dialect == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// --- History ---

// Upsert implements the HistoryStorage interface.
func (s *SQLStorage) Upsert(ctx context.Context, rec domain.HistoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", err)
	}
	defer tx.Rollback()

	if err := s.upsertTx(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// BulkUpsert implements the HistoryStorage interface.
func (s *SQLStorage) BulkUpsert(ctx context.Context, recs []domain.HistoryRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning bulk upsert: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if err := s.upsertTx(ctx, tx, rec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStorage) upsertTx(ctx context.Context, tx *sql.Tx, rec domain.HistoryRecord) error {
	var stored string
	err := tx.QueryRowContext(ctx,
		s.rebind("SELECT query_terms FROM videos WHERE video_id = ?"+s.lockRow()), rec.ID,
	).Scan(&stored)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO videos (video_id, query_terms, title, description, thumbnail, views, subscribers, published_at, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			rec.ID, rec.Terms.String(), rec.Title, rec.Description, rec.ThumbnailURL,
			rec.Views, rec.Subscribers, formatTime(rec.PublishedAt), rec.LastSeen,
		)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", rec.ID, err)
		}
	case err != nil:
		return fmt.Errorf("reading %s: %w", rec.ID, err)
	default:
		merged := domain.ParseTermSet(stored).Union(rec.Terms)
		_, err = tx.ExecContext(ctx, s.rebind(`
			UPDATE videos SET views = ?, subscribers = ?, last_seen = ?, description = ?, query_terms = ?
			WHERE video_id = ?`),
			rec.Views, rec.Subscribers, rec.LastSeen, rec.Description, merged.String(), rec.ID,
		)
		if err != nil {
			return fmt.Errorf("updating %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Delete implements the HistoryStorage interface.
func (s *SQLStorage) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM videos WHERE video_id = ?"), id)
	return err
}

// DeleteAll implements the HistoryStorage interface.
func (s *SQLStorage) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM videos")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RemoveQueryTerm implements the HistoryStorage interface.
func (s *SQLStorage) RemoveQueryTerm(ctx context.Context, id, term string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning term removal: %w", err)
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx,
		s.rebind("SELECT query_terms FROM videos WHERE video_id = ?"+s.lockRow()), id,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", id, err)
	}

	remaining := domain.ParseTermSet(stored).Remove(term)
	if _, err := tx.ExecContext(ctx,
		s.rebind("UPDATE videos SET query_terms = ? WHERE video_id = ?"), remaining.String(), id,
	); err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	return tx.Commit()
}

const historyColumns = "video_id, query_terms, title, description, thumbnail, views, subscribers, published_at, last_seen"

func scanHistory(row interface{ Scan(...any) error }) (domain.HistoryRecord, error) {
	var (
		rec       domain.HistoryRecord
		terms     string
		published string
	)
	err := row.Scan(&rec.ID, &terms, &rec.Title, &rec.Description, &rec.ThumbnailURL,
		&rec.Views, &rec.Subscribers, &published, &rec.LastSeen)
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	rec.Terms = domain.ParseTermSet(terms)
	rec.PublishedAt = parseTime(published)
	return rec, nil
}

// FindByID implements the HistoryStorage interface.
func (s *SQLStorage) FindByID(ctx context.Context, id string) (*domain.HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+historyColumns+" FROM videos WHERE video_id = ?"), id)
	rec, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListAll implements the HistoryStorage interface.
func (s *SQLStorage) ListAll(ctx context.Context) ([]domain.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+historyColumns+" FROM videos ORDER BY video_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []domain.HistoryRecord{}
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- Runs ---

// SaveRun implements the RunStorage interface.
func (s *SQLStorage) SaveRun(ctx context.Context, run domain.RunSummary) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (run_id, state, terms, started_at, finished_at, searched, unique_count, accepted, saved, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			state = excluded.state,
			finished_at = excluded.finished_at,
			searched = excluded.searched,
			unique_count = excluded.unique_count,
			accepted = excluded.accepted,
			saved = excluded.saved,
			error = excluded.error`),
		run.ID, string(run.State), domain.TermSet(run.Terms).String(), formatTime(run.StartedAt),
		formatTime(run.FinishedAt), run.Searched, run.Unique, run.Accepted, run.Saved, run.Error,
	)
	return err
}

// LastRun implements the RunStorage interface.
func (s *SQLStorage) LastRun(ctx context.Context) (*domain.RunSummary, error) {
	var (
		run               domain.RunSummary
		state, terms      string
		started, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, state, terms, started_at, finished_at, searched, unique_count, accepted, saved, error
		FROM runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&run.ID, &state, &terms, &started, &finished, &run.Searched, &run.Unique, &run.Accepted, &run.Saved, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.State = domain.RunState(state)
	run.Terms = domain.ParseTermSet(terms)
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return &run, nil
}
