package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS transcript_cache (
	cache_key  TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	summary    TEXT,
	source     TEXT NOT NULL DEFAULT 'captions',
	partial    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS transcript_cache_created_at_idx ON transcript_cache (created_at)`

// Postgres stores entries in the transcript_cache table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pgx pool, pings it and ensures the cache table.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	slog.Info("cache postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry
	err := p.pool.QueryRow(ctx,
		`SELECT text, COALESCE(summary, ''), source, partial, created_at
		   FROM transcript_cache WHERE cache_key = $1`, key,
	).Scan(&e.Text, &e.Summary, &e.Source, &e.Partial, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("select cache: %w", err)
	}
	return e, nil
}

func (p *Postgres) Put(ctx context.Context, key string, e Entry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO transcript_cache (cache_key, text, summary, source, partial, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   text = EXCLUDED.text, summary = EXCLUDED.summary, source = EXCLUDED.source,
		   partial = EXCLUDED.partial, created_at = EXCLUDED.created_at`,
		key, e.Text, e.Summary, e.Source, e.Partial, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert cache: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM transcript_cache WHERE cache_key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("delete cache: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) Sweep(ctx context.Context, before time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM transcript_cache WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
