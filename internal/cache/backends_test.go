package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, testKey)
	assert.ErrorIs(t, err, ErrMiss)

	e := Entry{Text: "text", Summary: "summary", Source: "speech-model", Partial: true, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(t, s.Put(ctx, testKey, e))
	got, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, e.Text, got.Text)
	assert.Equal(t, e.Summary, got.Summary)
	assert.Equal(t, e.Source, got.Source)
	assert.Equal(t, e.Partial, got.Partial)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", e.CreatedAt, got.CreatedAt)

	e.Summary = ""
	require.NoError(t, s.Put(ctx, testKey, e), "upsert")
	got, err = s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Empty(t, got.Summary)

	removed, err := s.Delete(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Delete(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	require.NoError(t, err)
	defer s.(*SQLite).Close()

	assert.Equal(t, "sqlite", s.Name())
	exerciseStore(t, s)

	sq := s.(*SQLite)
	require.NoError(t, sq.Put(ctx, testKey, Entry{Text: "old", CreatedAt: time.Now().Add(-2 * time.Hour)}))
	n, err := sq.Sweep(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, sq.Ping(ctx))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := Open(ctx, "redis://"+mr.Addr(), 10*time.Minute)
	require.NoError(t, err)
	defer s.(*Redis).Close()

	exerciseStore(t, s)

	require.NoError(t, s.Put(ctx, testKey, Entry{Text: "ttl"}))
	assert.Equal(t, 10*time.Minute, mr.TTL(redisKeyPrefix+testKey))
	mr.FastForward(11 * time.Minute)
	_, err = s.Get(ctx, testKey)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(context.Background(), "mysql://localhost/db", time.Hour)
	assert.ErrorContains(t, err, `"mysql"`)

	s, err = Open(context.Background(), "redis://127.0.0.1:1", time.Hour)
	assert.Error(t, err)
	assert.Nil(t, s, "failed opens return an untyped nil store")
}
