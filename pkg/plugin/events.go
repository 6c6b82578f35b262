package plugin

import (
	"context"
	"time"
)

// Event is a message published on the host event bus.
type Event struct {
	// Topic identifies the event kind (e.g. "dremel.device.discovered").
	Topic string `json:"topic"`

	// Source names the module that published the event.
	Source string `json:"source"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// Payload is the event body; type depends on the topic.
	Payload any `json:"payload,omitempty"`
}

// EventHandler processes a single event.
type EventHandler func(ctx context.Context, event Event)

// EventBus is the host's pub/sub channel. It replaces framework signal/slot
// style notifications: anything a module wants the host (or its UI) to
// hear goes through here.
type EventBus interface {
	// Publish delivers the event synchronously to all subscribers.
	Publish(ctx context.Context, event Event) error

	// PublishAsync delivers the event on a separate goroutine.
	PublishAsync(ctx context.Context, event Event)

	// Subscribe registers a handler for one topic. The returned function
	// removes the subscription.
	Subscribe(topic string, handler EventHandler) func()

	// SubscribeAll registers a handler for every topic.
	SubscribeAll(handler EventHandler) func()
}
