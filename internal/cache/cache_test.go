package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "a3ca6befa1b91865d235bfe385f5ce19"

// memStore is an in-memory Store with switchable failure.
type memStore struct {
	name    string
	entries map[string]Entry
	fail    error
	deletes int
}

func newMem(name string) *memStore { return &memStore{name: name, entries: map[string]Entry{}} }

func (m *memStore) Name() string { return m.name }

func (m *memStore) Get(_ context.Context, key string) (Entry, error) {
	if m.fail != nil {
		return Entry{}, m.fail
	}
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrMiss
	}
	return e, nil
}

func (m *memStore) Put(_ context.Context, key string, e Entry) error {
	if m.fail != nil {
		return m.fail
	}
	m.entries[key] = e
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) (bool, error) {
	m.deletes++
	if m.fail != nil {
		return false, m.fail
	}
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

func (m *memStore) Ping(context.Context) error { return m.fail }

func TestTieredDurableFirst(t *testing.T) {
	ctx := context.Background()
	durable, fallback := newMem("db"), newMem("file")
	c := NewTiered(durable, fallback, time.Hour, false)

	require.NoError(t, c.Put(ctx, testKey, Entry{Text: "hello", Source: "captions"}))
	assert.Contains(t, durable.entries, testKey)
	assert.NotContains(t, fallback.entries, testKey)

	got, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt is stamped on write")
}

func TestTieredFailOpenUsesFallback(t *testing.T) {
	ctx := context.Background()
	durable, fallback := newMem("db"), newMem("file")
	durable.fail = errors.New("connection refused")
	c := NewTiered(durable, fallback, time.Hour, false)

	require.NoError(t, c.Put(ctx, testKey, Entry{Text: "local"}))
	assert.Contains(t, fallback.entries, testKey)

	got, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "local", got.Text)
}

func TestTieredFailClosed(t *testing.T) {
	ctx := context.Background()
	durable, fallback := newMem("db"), newMem("file")
	fallback.entries[testKey] = Entry{Text: "stale local", CreatedAt: time.Now()}
	durable.fail = errors.New("connection refused")
	c := NewTiered(durable, fallback, time.Hour, true)

	_, err := c.Get(ctx, testKey)
	assert.ErrorIs(t, err, ErrMiss, "fail-closed never reads the fallback")

	err = c.Put(ctx, testKey, Entry{Text: "new"})
	require.Error(t, err)
	assert.Equal(t, engine.KindDependencyUnavailable, engine.KindOf(err))
	assert.Equal(t, "stale local", fallback.entries[testKey].Text, "fail-closed never writes the fallback")
}

func TestTieredFailClosedWithoutDurable(t *testing.T) {
	c := NewTiered(nil, newMem("file"), time.Hour, true)
	_, err := c.Delete(context.Background(), testKey)
	assert.Equal(t, engine.KindDependencyUnavailable, engine.KindOf(err))
	assert.Equal(t, "disabled", c.DurableStatus(context.Background()))
}

func TestTieredExpiredEntriesArePurged(t *testing.T) {
	ctx := context.Background()
	durable := newMem("db")
	durable.entries[testKey] = Entry{Text: "old", CreatedAt: time.Now().Add(-2 * time.Hour)}
	c := NewTiered(durable, nil, time.Hour, false)

	_, err := c.Get(ctx, testKey)
	assert.ErrorIs(t, err, ErrMiss)
	assert.NotContains(t, durable.entries, testKey)
	assert.Equal(t, 1, durable.deletes)
}

func TestTieredDelete(t *testing.T) {
	ctx := context.Background()
	durable, fallback := newMem("db"), newMem("file")
	fallback.entries[testKey] = Entry{Text: "x"}
	c := NewTiered(durable, fallback, time.Hour, false)

	removed, err := c.Delete(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.Delete(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTieredDurableStatus(t *testing.T) {
	durable := newMem("db")
	c := NewTiered(durable, nil, time.Hour, false)
	assert.Equal(t, "ok", c.DurableStatus(context.Background()))
	durable.fail = errors.New("down")
	assert.Equal(t, "unavailable", c.DurableStatus(context.Background()))
	assert.Equal(t, "db", c.DurableName())
}
