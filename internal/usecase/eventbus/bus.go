// Package eventbus provides the in-process pub/sub through which stores
// publish state-change notifications to UI observers.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"agentdesk/internal/domain"
)

// allEvents is the registry key for subscribe-all handlers. It cannot
// collide with a real event type.
const allEvents = domain.EventType("*")

// Bus is a goroutine-safe event bus. Handlers run on their own goroutines
// after the publishing mutation has completed; panicking handlers are
// recovered and logged.
type Bus struct {
	mu     sync.RWMutex
	subs   map[domain.EventType]map[uint64]domain.EventHandler
	nextID atomic.Uint64
	wg     sync.WaitGroup
	closed atomic.Bool
	logger *slog.Logger
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[domain.EventType]map[uint64]domain.EventHandler),
		logger: logger,
	}
}

// Publish fans out an event to typed subscribers and subscribe-all handlers.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	handlers := make([]domain.EventHandler, 0, len(b.subs[event.Type])+len(b.subs[allEvents]))
	for _, h := range b.subs[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range b.subs[allEvents] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.wg.Add(1)
		go func(h domain.EventHandler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						"event", string(event.Type),
						"panic", r,
					)
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.register(eventType, handler)
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	return b.register(allEvents, handler)
}

func (b *Bus) register(key domain.EventType, handler domain.EventHandler) func() {
	id := b.nextID.Add(1)

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[uint64]domain.EventHandler)
	}
	b.subs[key][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs[key], id)
		b.mu.Unlock()
	}
}

// Close prevents new publishes and waits for in-flight handlers to finish.
// Idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.wg.Wait()
}
