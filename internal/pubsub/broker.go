// Package pubsub provides a small generic broker for in-process events.
package pubsub

import (
	"context"
	"sync"
)

// EventType classifies what happened to the payload.
type EventType int

const (
	CreatedEvent EventType = iota
	UpdatedEvent
	DeletedEvent
)

// Event pairs a type with its payload.
type Event[T any] struct {
	Type    EventType
	Payload T
}

// subscriberBuffer is the per-subscriber channel capacity. Publish never
// blocks; events beyond this backlog are dropped for that subscriber.
const subscriberBuffer = 64

// Broker fans events out to any number of subscribers.
type Broker[T any] struct {
	mu     sync.Mutex
	subs   map[chan Event[T]]struct{}
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[chan Event[T]]struct{})}
}

// Subscribe registers a new subscriber. The returned channel closes when
// ctx is cancelled or the broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	ch := make(chan Event[T], subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(ch)
	}()

	return ch
}

// remove unregisters and closes ch unless Close already did.
func (b *Broker[T]) remove(ch chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Publish delivers the event to every subscriber without blocking.
// Subscribers that have fallen subscriberBuffer events behind miss it.
func (b *Broker[T]) Publish(t EventType, payload T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- Event[T]{Type: t, Payload: payload}:
		default:
		}
	}
}

// Close closes every subscription. Publish and Subscribe become no-ops.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// SubscriberCount reports how many subscriptions are currently active.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// ContinuousListener wraps a subscription for callers that pull events
// one at a time, such as TUI update loops.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener subscribes to b for the lifetime of ctx.
func NewContinuousListener[T any](ctx context.Context, b *Broker[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{ctx: ctx, ch: b.Subscribe(ctx)}
}

// Next blocks until an event arrives. It returns false when the
// subscription has ended.
func (l *ContinuousListener[T]) Next() (Event[T], bool) {
	select {
	case <-l.ctx.Done():
		return Event[T]{}, false
	case ev, ok := <-l.ch:
		return ev, ok
	}
}
