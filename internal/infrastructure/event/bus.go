// Package event provides the in-process domain event bus that fans stock
// events out to their handlers.
package event

import (
	"context"
	"sync"

	"github.com/clinic/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithAsyncDispatch makes Publish enqueue events for a background worker
// while the bus is running. The queue holds up to buffer events; Publish
// blocks when it is full.
func WithAsyncDispatch(buffer int) BusOption {
	return func(b *InMemoryEventBus) {
		if buffer < 1 {
			buffer = 1
		}
		b.buffer = buffer
	}
}

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus implements shared.EventBus with in-process pub/sub.
// Handler failures and panics are logged and never reach the publisher.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	buffer   int

	mu      sync.RWMutex
	running bool
	queue   chan envelope
	wg      sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event_bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers events to every handler registered for their type.
// Delivery is synchronous unless async dispatch is enabled and the bus is running.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	if b.queue == nil {
		b.mu.RUnlock()
		for _, event := range events {
			b.dispatch(ctx, event)
		}
		return nil
	}
	defer b.mu.RUnlock()

	// handlers outlive the request that produced the event
	detached := context.WithoutCancel(ctx)
	for _, event := range events {
		select {
		case b.queue <- envelope{ctx: detached, event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit types the handler's own
// EventTypes are used; an empty list subscribes to every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start launches the dispatch worker when async dispatch is configured
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}
	b.running = true
	if b.buffer > 0 {
		b.queue = make(chan envelope, b.buffer)
		b.wg.Add(1)
		go b.worker(b.queue)
	}
	b.logger.Info("event bus started", zap.Bool("async", b.buffer > 0))
	return nil
}

// Stop drains queued events and waits for the worker, bounded by ctx
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.running = false
		if b.queue != nil {
			close(b.queue)
			b.queue = nil
		}
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) worker(queue <-chan envelope) {
	defer b.wg.Done()
	for env := range queue {
		b.dispatch(env.ctx, env.event)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, event shared.DomainEvent) {
	for _, handler := range b.registry.GetHandlers(event.EventType()) {
		if err := b.safeHandle(ctx, handler, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *InMemoryEventBus) safeHandle(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
