// Package admission bounds how many expensive transcript resolutions run at
// once.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Gate is a counting semaphore over a buffered channel.
type Gate struct {
	slots chan struct{}
}

// New returns a gate admitting capacity holders (minimum 1).
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{slots: make(chan struct{}, capacity)}
}

// Acquire takes a slot, waiting up to timeout. timeout <= 0 tries once
// without blocking. The returned release is safe to call more than once.
func (g *Gate) Acquire(ctx context.Context, timeout time.Duration) (release func(), err error) {
	select {
	case g.slots <- struct{}{}:
		return g.releaser(), nil
	default:
	}
	if timeout <= 0 {
		engine.IncrQueueFull()
		return nil, queueFull(nil)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case g.slots <- struct{}{}:
		return g.releaser(), nil
	case <-timer.C:
		engine.IncrQueueFull()
		return nil, queueFull(nil)
	case <-ctx.Done():
		return nil, queueFull(ctx.Err())
	}
}

// Do runs fn while holding a slot.
func (g *Gate) Do(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	release, err := g.Acquire(ctx, timeout)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// InUse reports how many slots are held.
func (g *Gate) InUse() int { return len(g.slots) }

// Capacity reports the slot count.
func (g *Gate) Capacity() int { return cap(g.slots) }

func (g *Gate) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-g.slots })
	}
}

func queueFull(cause error) error {
	return engine.Errorf(engine.KindQueueFull, engine.MsgTooManyRequests, cause)
}
