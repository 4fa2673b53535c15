// Package pubsub provides an in-process, topic-keyed fan-out broker used for
// the in-memory change feed and for live-push watchers.
package pubsub

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the channel buffer of each subscription.
const DefaultBufferSize = 64

// Broker fans messages published on a topic out to every subscriber of that
// topic. Publish never blocks: a subscriber whose buffer is full misses the
// message and the drop is counted.
type Broker[T any] struct {
	mu          sync.RWMutex
	subscribers map[string][]chan T
	bufferSize  int
	closed      bool
	done        chan struct{}
	dropped     atomic.Int64
}

// Option configures a Broker.
type Option func(*options)

type options struct {
	bufferSize int
}

// WithBufferSize sets the channel buffer size for subscribers.
func WithBufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// NewBroker creates an empty broker.
func NewBroker[T any](opts ...Option) *Broker[T] {
	o := options{bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{
		subscribers: make(map[string][]chan T),
		bufferSize:  o.bufferSize,
		done:        make(chan struct{}),
	}
}

// Publish sends msg to all subscribers of topic.
func (b *Broker[T]) Publish(topic string, msg T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel receiving messages published on topic. The
// subscription ends, and the channel is closed, when ctx is done or the
// broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context, topic string) <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan T)
		close(ch)
		return ch
	}

	ch := make(chan T, b.bufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], ch)

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(topic, ch)
		case <-b.done:
		}
	}()
	return ch
}

func (b *Broker[T]) unsubscribe(topic string, ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	idx := slices.Index(subs, ch)
	if idx < 0 {
		return
	}
	b.subscribers[topic] = slices.Delete(subs, idx, idx+1)
	close(ch)

	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

// Close shuts down the broker and closes all subscription channels.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)

	for topic, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *Broker[T]) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}
