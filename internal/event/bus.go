// Package event implements the in-process pub/sub bus modules use to
// raise notifications: device discovery, connection state changes, print
// progress, and user-facing notices all travel through here.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/pkg/plugin"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

type subscriber struct {
	id      int
	handler plugin.EventHandler
}

// Bus is a thread-safe topic-based event bus. Handlers run synchronously
// on Publish and on a separate goroutine on PublishAsync; a panicking
// handler is recovered and logged without affecting other handlers.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	byTopic  map[string][]subscriber
	catchAll []subscriber
	logger   *zap.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		byTopic: make(map[string][]subscriber),
		logger:  logger,
	}
}

// Subscribe registers handler for events published on topic. The returned
// function removes the subscription and is safe to call more than once.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.byTopic[topic] = append(b.byTopic[topic], subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byTopic[topic] = removeSubscriber(b.byTopic[topic], id)
	}
}

// SubscribeAll registers handler for every event regardless of topic.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.catchAll = append(b.catchAll, subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.catchAll = removeSubscriber(b.catchAll, id)
	}
}

// Publish delivers event synchronously to all matching subscribers.
// Publishing with no subscribers is not an error.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	event = stamp(event)
	for _, s := range b.snapshot(event.Topic) {
		b.dispatch(ctx, s, event)
	}
	return nil
}

// PublishAsync delivers event on a separate goroutine, returning
// immediately. Delivery order across events is not guaranteed.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	event = stamp(event)
	subs := b.snapshot(event.Topic)
	go func() {
		for _, s := range subs {
			b.dispatch(ctx, s, event)
		}
	}()
}

// stamp fills in the publish time; a caller-provided timestamp wins.
func stamp(event plugin.Event) plugin.Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// snapshot returns the current subscribers for topic plus the catch-all
// set, copied so handlers run without holding the lock.
func (b *Bus) snapshot(topic string) []subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make([]subscriber, 0, len(b.byTopic[topic])+len(b.catchAll))
	subs = append(subs, b.byTopic[topic]...)
	subs = append(subs, b.catchAll...)
	return subs
}

func (b *Bus) dispatch(ctx context.Context, s subscriber, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	s.handler(ctx, event)
}

func removeSubscriber(subs []subscriber, id int) []subscriber {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
