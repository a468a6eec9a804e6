// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed  = errors.New("event bus is shutting down")
	ErrBufferFull = errors.New("event channel full")
)

// anyType is the key of handlers subscribed to every event type.
const anyType EventType = "*"

type route struct {
	id      string
	typ     EventType
	handler Handler
}

// Bus carries committed engine events to journals, metrics and trade logs.
// A single worker delivers events in publish order, and every event reaches
// its handlers in the order they subscribed.
type Bus struct {
	mu     sync.RWMutex
	routes []route

	queue   chan Event
	closing chan struct{}
	closed  sync.Once
	idle    chan struct{}
	logger  *zap.Logger

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// Stats is a point-in-time view of the bus.
type Stats struct {
	BufferSize      int
	PendingEvents   int
	EventTypes      int
	HandlersPerType map[EventType]int
	Delivered       uint64
	Dropped         uint64
	Failed          uint64
}

// NewBus starts the delivery worker. Publish fails fast once bufferSize
// events are waiting.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		queue:   make(chan Event, bufferSize),
		closing: make(chan struct{}),
		idle:    make(chan struct{}),
		logger:  logger.Named("event_bus"),
	}
	go b.run()
	return b
}

// Subscribe registers handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	r := route{id: uuid.NewString(), typ: eventType, handler: handler}

	b.mu.Lock()
	b.routes = append(b.routes, r)
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", r.id))
	return &subscription{id: r.id, eventBus: b}
}

// SubscribeAll registers a handler that receives every event.
func (b *Bus) SubscribeAll(handler Handler) Subscription {
	return b.Subscribe(anyType, handler)
}

// SubscribeFunc subscribes a plain function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues an event for the worker. It never blocks: with the buffer
// full the event is dropped and counted.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.closing:
		return ErrBusClosed
	default:
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("%w: %s", ErrBufferFull, event.Type())
	}
}

// PublishSync runs every matching handler on the caller's goroutine. All
// handlers run even if some fail; their errors are joined.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	var targets []route
	for _, r := range b.routes {
		if r.typ == event.Type() || r.typ == anyType {
			targets = append(targets, r)
		}
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	var errs []error
	for _, r := range targets {
		err := r.handler.Handle(ctx, event)
		if err == nil {
			continue
		}
		b.failed.Add(1)
		b.logger.Error("Handler error",
			zap.String("event_type", string(event.Type())),
			zap.String("handler_id", r.id),
			zap.Error(err))
		errs = append(errs, err)
	}
	b.delivered.Add(1)

	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %w", errors.Join(errs...))
	}
	return nil
}

func (b *Bus) run() {
	defer close(b.idle)
	ctx := context.Background()

	for {
		select {
		case event := <-b.queue:
			// failures are already counted and logged per handler
			_ = b.PublishSync(ctx, event)
		case <-b.closing:
			// Дочищаем очередь перед выходом
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(ctx, event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.routes {
		if r.id == id {
			b.routes = append(b.routes[:i:i], b.routes[i+1:]...)
			b.logger.Debug("Handler unsubscribed",
				zap.String("event_type", string(r.typ)),
				zap.String("subscription_id", id))
			return
		}
	}
}

// Shutdown stops accepting events and waits until everything already queued
// has been delivered, or until ctx expires.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.closed.Do(func() {
		b.logger.Info("Shutting down event bus")
		close(b.closing)
	})

	select {
	case <-b.idle:
		b.logger.Info("Event bus shutdown complete",
			zap.Uint64("delivered", b.delivered.Load()),
			zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats returns counters and the current subscription layout.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	perType := make(map[EventType]int)
	for _, r := range b.routes {
		perType[r.typ]++
	}
	return Stats{
		BufferSize:      cap(b.queue),
		PendingEvents:   len(b.queue),
		EventTypes:      len(perType),
		HandlersPerType: perType,
		Delivered:       b.delivered.Load(),
		Dropped:         b.dropped.Load(),
		Failed:          b.failed.Load(),
	}
}
