package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/leadflow/pkg/logger"
	"github.com/okian/leadflow/pkg/metrics"
)

type subscription struct {
	id      uint64
	handler Handler
}

// InMemoryBus runs handlers on the publisher's goroutine, name-specific
// subscribers first, each group in subscription order. Events from one
// publisher therefore arrive in publication order.
type InMemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	logger logger.Logger
}

var _ Bus = (*InMemoryBus)(nil)

// Option applies a configuration option to the InMemoryBus.
type Option func(*InMemoryBus)

// WithLogger sets the logger used for handler failures.
func WithLogger(l logger.Logger) Option {
	return func(b *InMemoryBus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(opts ...Option) *InMemoryBus {
	b := &InMemoryBus{subs: make(map[string][]subscription)}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get()
	}
	return b
}

// Subscribe registers handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventName] = append(b.subs[eventName], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs[eventName] = slices.DeleteFunc(b.subs[eventName], func(s subscription) bool { return s.id == id })
		})
	}
}

// Publish delivers event and logs handler failures.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	if err := b.PublishSync(ctx, event); err != nil {
		b.logger.Warn(ctx, "event handler failed", logger.String("event", event.EventName()), logger.Error(err))
	}
}

// PublishSync delivers event and joins handler errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.EventName()])+len(b.subs[AllEvents]))
	for _, s := range b.subs[event.EventName()] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.subs[AllEvents] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			metrics.RecordErrorByComponent("events", "handler")
			errs = append(errs, fmt.Errorf("%s: %w", event.EventName(), err))
		}
	}
	return errors.Join(errs...)
}
