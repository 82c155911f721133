package pubsub

import "context"

// ContinuousListener maintains subscription state for a polling consumer.
// It wraps a broker subscription and exposes a blocking Next that returns
// the next published event (or false once the context is cancelled).
//
// This used to hand events to a Bubble Tea update loop via a tea.Cmd; since
// this module has no terminal UI, it now exposes a plain channel-based
// receive instead.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener creates a new listener that subscribes to the broker.
// The subscription is automatically cleaned up when the context is
// cancelled.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Next blocks until the next event arrives or the context is cancelled. The
// second return value is false once the subscription is done.
func (l *ContinuousListener[T]) Next() (Event[T], bool) {
	select {
	case <-l.ctx.Done():
		var zero Event[T]
		return zero, false
	case event, ok := <-l.ch:
		if !ok {
			var zero Event[T]
			return zero, false
		}
		return event, true
	}
}
