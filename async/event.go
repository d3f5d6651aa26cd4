// Package async holds the small concurrency primitives the protocol stack
// is built from: a one-shot event that starts unset, transitions at most
// once, and releases every current and future waiter (§9 DESIGN NOTES).
package async

import (
	"context"
	"sync"
)

// Event is a fire-once gate. Wait blocks until Fire has been called (by
// any goroutine, any number of times — only the first has effect) or the
// supplied context is cancelled.
type Event struct {
	once sync.Once
	ch   chan struct{}
	mu   sync.Mutex
}

// NewEvent returns an unset Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Fire transitions the event to set. Safe to call multiple times or from
// multiple goroutines; only the first call has any effect.
func (e *Event) Fire() {
	e.once.Do(func() { close(e.ch) })
}

// IsSet reports whether Fire has been called, without blocking.
func (e *Event) IsSet() bool {
	select {
	case <-e.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until Fire is called or ctx is cancelled, whichever happens
// first.
func (e *Event) Wait(ctx context.Context) error {
	select {
	case <-e.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done exposes the underlying channel for use directly in a select
// alongside other cases (e.g. a watcher goroutine racing several events).
func (e *Event) Done() <-chan struct{} {
	return e.ch
}
