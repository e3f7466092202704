// Package cache stores resolved transcripts keyed by request shape, in a
// durable backend with a local file fallback.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// ErrMiss is returned when no fresh entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Entry is one cached transcript result.
type Entry struct {
	Text      string    `json:"text"`
	Summary   string    `json:"summary,omitempty"`
	Source    string    `json:"source"`
	Partial   bool      `json:"partial"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a cache backend. Get returns ErrMiss for absent keys; Delete
// reports whether a row existed.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) (bool, error)
	Name() string
}

// Pinger is implemented by stores with a health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sweeper is implemented by stores that can drop entries created before a cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, before time.Time) (int, error)
}

// Tiered reads and writes the durable store first and falls back to the
// local store unless it is fail-closed.
type Tiered struct {
	durable    Store
	fallback   Store
	ttl        time.Duration
	failClosed bool
	now        func() time.Time
}

// NewTiered composes the two backends. durable may be nil.
func NewTiered(durable, fallback Store, ttl time.Duration, failClosed bool) *Tiered {
	return &Tiered{durable: durable, fallback: fallback, ttl: ttl, failClosed: failClosed, now: time.Now}
}

// Get returns a fresh entry. Backend errors are logged and read as misses.
func (t *Tiered) Get(ctx context.Context, key string) (Entry, error) {
	if t.durable != nil {
		e, err := t.lookup(ctx, t.durable, key)
		if err == nil {
			engine.IncrCacheHit()
			return e, nil
		}
		if !errors.Is(err, ErrMiss) {
			engine.IncrCacheStoreError()
			slog.Warn("cache: durable read failed", slog.String("store", t.durable.Name()), slog.Any("error", err))
		}
	}
	if t.fallback != nil && !t.failClosed {
		e, err := t.lookup(ctx, t.fallback, key)
		if err == nil {
			engine.IncrCacheHit()
			return e, nil
		}
		if !errors.Is(err, ErrMiss) {
			slog.Warn("cache: fallback read failed", slog.Any("error", err))
		}
	}
	engine.IncrCacheMiss()
	return Entry{}, ErrMiss
}

// Put stores e, stamping CreatedAt when unset. A fail-closed cache without a
// working durable store returns a dependency error.
func (t *Tiered) Put(ctx context.Context, key string, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now().UTC()
	}
	var durableErr error
	if t.durable != nil {
		if durableErr = t.durable.Put(ctx, key, e); durableErr == nil {
			return nil
		}
		engine.IncrCacheStoreError()
		slog.Warn("cache: durable write failed", slog.String("store", t.durable.Name()), slog.Any("error", durableErr))
	}
	if t.failClosed {
		return engine.Errorf(engine.KindDependencyUnavailable, engine.MsgDatabaseRequired, durableErr)
	}
	if t.fallback == nil {
		return durableErr
	}
	engine.IncrCacheFallbackWrite()
	return t.fallback.Put(ctx, key, e)
}

// Delete removes key from every backend and reports whether any held it.
func (t *Tiered) Delete(ctx context.Context, key string) (bool, error) {
	if t.durable == nil && t.failClosed {
		return false, engine.Errorf(engine.KindDependencyUnavailable, engine.MsgDatabaseRequired, nil)
	}
	removed := false
	if t.durable != nil {
		ok, err := t.durable.Delete(ctx, key)
		if err != nil {
			if t.failClosed {
				return false, engine.Errorf(engine.KindDependencyUnavailable, engine.MsgDatabaseRequired, err)
			}
			slog.Warn("cache: durable delete failed", slog.Any("error", err))
		}
		removed = removed || ok
	}
	if t.fallback != nil {
		ok, err := t.fallback.Delete(ctx, key)
		if err != nil {
			return removed, err
		}
		removed = removed || ok
	}
	return removed, nil
}

// Sweep drops expired entries from every backend that supports it.
func (t *Tiered) Sweep(ctx context.Context) int {
	before := t.now().Add(-t.ttl)
	total := 0
	for _, s := range []Store{t.durable, t.fallback} {
		sw, ok := s.(Sweeper)
		if !ok {
			continue
		}
		n, err := sw.Sweep(ctx, before)
		if err != nil {
			slog.Warn("cache: sweep failed", slog.String("store", s.Name()), slog.Any("error", err))
			continue
		}
		total += n
	}
	return total
}

// DurableStatus reports "disabled", "ok" or "unavailable".
func (t *Tiered) DurableStatus(ctx context.Context) string {
	if t.durable == nil {
		return "disabled"
	}
	if p, ok := t.durable.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return "unavailable"
		}
	}
	return "ok"
}

// DurableName names the durable backend, or "" when absent.
func (t *Tiered) DurableName() string {
	if t.durable == nil {
		return ""
	}
	return t.durable.Name()
}

// FailClosed reports whether local fallback is disabled.
func (t *Tiered) FailClosed() bool { return t.failClosed }

func (t *Tiered) lookup(ctx context.Context, s Store, key string) (Entry, error) {
	e, err := s.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	if t.ttl > 0 && t.now().Sub(e.CreatedAt) > t.ttl {
		if _, err := s.Delete(ctx, key); err != nil {
			slog.Debug("cache: purge expired failed", slog.String("store", s.Name()), slog.Any("error", err))
		}
		return Entry{}, ErrMiss
	}
	return e, nil
}
