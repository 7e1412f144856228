// Package events provides the in-process event bus the presentation layer
// subscribes to for lead and import updates.
package events

import (
	"context"
	"time"
)

// AllEvents subscribes a handler to every event name.
const AllEvents = "*"

// Event is the base interface all domain events must implement.
type Event interface {
	// EventName returns a unique identifier for the event type.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent creates a new base event with the current timestamp.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of a specific type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow ordinary functions to be used as handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus is the interface for publishing and subscribing to domain events.
type Bus interface {
	// Publish delivers an event to its handlers. Handler errors are logged.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers an event and returns every handler error joined.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for an event name, or for AllEvents.
	// The returned function removes the subscription.
	Subscribe(eventName string, handler Handler) (unsubscribe func())
}
