// internal/events/handler.go
package events

import (
	"context"
)

// Handler processes events. Handlers run on the bus worker and should return quickly.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// On adapts a function over one concrete event struct. Events of any other
// Go type are ignored.
func On[T Event](fn func(ctx context.Context, event T) error) Handler {
	return HandlerFunc(func(ctx context.Context, event Event) error {
		typed, ok := event.(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
}

// Unsubscribe removes this subscription from the event bus.
func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id)
}
