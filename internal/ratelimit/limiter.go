// Package ratelimit implements per-key sliding-window request limits.
package ratelimit

import (
	"sync"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// DefaultMaxBuckets caps tracked keys before stale ones are evicted.
const DefaultMaxBuckets = 8192

// Limiter keeps, per key, the timestamps of accepted requests inside the
// trailing window.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string][]time.Time
	maxBuckets int
	now        func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns a limiter tracking at most maxBuckets keys between evictions.
func New(maxBuckets int, opts ...Option) *Limiter {
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	l := &Limiter{
		buckets:    make(map[string][]time.Time),
		maxBuckets: maxBuckets,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request for key and reports whether it fits in limit per
// window. limit <= 0 disables the check.
func (l *Limiter) Allow(key string, limit int, window time.Duration) bool {
	ok, _ := l.Check(key, limit, window)
	return ok
}

// Check is Allow plus, on rejection, how long until the oldest request in
// the window expires.
func (l *Limiter) Check(key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return true, 0
	}
	window = max(window, time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	bucket := prune(l.buckets[key], cutoff)
	if len(bucket) >= limit {
		l.buckets[key] = bucket
		return false, bucket[0].Sub(cutoff)
	}
	l.buckets[key] = append(bucket, now)

	if len(l.buckets) > l.maxBuckets {
		l.evict(cutoff)
	}
	return true, 0
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evict drops keys whose newest timestamp is older than cutoff.
func (l *Limiter) evict(cutoff time.Time) {
	for k, b := range l.buckets {
		if len(b) == 0 || b[len(b)-1].Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

func prune(bucket []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(bucket) && bucket[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return bucket
	}
	return append(bucket[:0], bucket[i:]...)
}

// Policy is a named limit applied under a key prefix.
type Policy struct {
	Name    string
	Limit   int
	Window  time.Duration
	limiter *Limiter
}

// NewPolicy binds limit/window to its own limiter.
func NewPolicy(name string, limit int, window time.Duration, maxBuckets int, opts ...Option) *Policy {
	return &Policy{Name: name, Limit: limit, Window: window, limiter: New(maxBuckets, opts...)}
}

// Enforce admits one request for principal or returns a rate-limited error.
func (p *Policy) Enforce(principal string) error {
	ok, wait := p.limiter.Check(p.Name+":"+principal, p.Limit, p.Window)
	if ok {
		return nil
	}
	engine.IncrRateLimited()
	e := engine.Errorf(engine.KindRateLimited, engine.MsgTooManyRequests, nil)
	e.RetryAfter = wait
	return e
}

// Limiter exposes the policy's limiter.
func (p *Policy) Limiter() *Limiter { return p.limiter }
