package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores entries in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the table.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS transcript_cache (
		cache_key  TEXT PRIMARY KEY,
		text       TEXT NOT NULL,
		summary    TEXT,
		source     TEXT NOT NULL DEFAULT 'captions',
		partial    INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Get(ctx context.Context, key string) (Entry, error) {
	var (
		e       Entry
		summary sql.NullString
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT text, summary, source, partial, created_at FROM transcript_cache WHERE cache_key = ?`, key,
	).Scan(&e.Text, &summary, &e.Source, &e.Partial, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("select cache: %w", err)
	}
	e.Summary = summary.String
	e.CreatedAt = time.UnixMilli(created).UTC()
	return e, nil
}

func (s *SQLite) Put(ctx context.Context, key string, e Entry) error {
	var summary sql.NullString
	if e.Summary != "" {
		summary = sql.NullString{String: e.Summary, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript_cache (cache_key, text, summary, source, partial, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   text = excluded.text, summary = excluded.summary, source = excluded.source,
		   partial = excluded.partial, created_at = excluded.created_at`,
		key, e.Text, summary, e.Source, e.Partial, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert cache: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcript_cache WHERE cache_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) Sweep(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcript_cache WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }
