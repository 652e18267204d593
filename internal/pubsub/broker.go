// Package pubsub is a small generic broadcast broker. Publishing never
// blocks: events to slow subscribers are dropped once their buffer fills.
package pubsub

import (
	"context"
	"sync"
)

// EventType describes what happened to the payload.
type EventType string

// Event types.
const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event pairs a payload with its event type.
type Event[T any] struct {
	Type    EventType
	Payload T
}

// Publisher is the sending half of a broker.
type Publisher[T any] interface {
	Publish(t EventType, payload T)
}

// Subscriber is the receiving half of a broker.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// bufferSize is the per-subscriber channel buffer.
const bufferSize = 64

// Broker fans events out to all current subscribers.
type Broker[T any] struct {
	mu       sync.RWMutex
	subs     map[chan Event[T]]struct{}
	done     chan struct{}
	shutdown sync.Once
}

// NewBroker returns a ready-to-use broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[chan Event[T]]struct{}),
		done: make(chan struct{}),
	}
}

// Subscribe registers a new subscriber whose channel closes when ctx is
// cancelled or the broker shuts down. After shutdown it returns an
// already-closed channel.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	ch := make(chan Event[T], bufferSize)

	select {
	case <-b.done:
		close(ch)
		return ch
	default:
	}

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish delivers the event to every subscriber that has buffer room.
func (b *Broker[T]) Publish(t EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- Event[T]{Type: t, Payload: payload}:
		default:
		}
	}
}

// Shutdown closes every subscriber channel and rejects new subscriptions.
// Safe to call more than once.
func (b *Broker[T]) Shutdown() {
	b.shutdown.Do(func() { close(b.done) })
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
