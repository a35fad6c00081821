package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of state-change notification being published.
type EventType string

const (
	// Chat store events.
	EventChatChanged  EventType = "chat.changed"
	EventRunStarted   EventType = "chat.run.started"
	EventRunFinalized EventType = "chat.run.finalized"
	EventRunError     EventType = "chat.run.error"

	// Transport events.
	EventStreamStatus EventType = "stream.status"

	// App state store events.
	EventAppStateChanged EventType = "appstate.changed"

	// Preload cache events.
	EventPreloadRefreshed EventType = "preload.refreshed"

	// Poller events.
	EventPollCompleted EventType = "poll.completed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler is a callback invoked when an event is received. Handlers run
// after the synchronous mutation that produced the event has completed.
type EventHandler func(ctx context.Context, event Event)

// EventBus is the publish/subscribe surface through which stores notify
// observers. Consumers must be I/O-light; handlers run concurrently.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for one event type and returns an
	// unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler for every event and returns an
	// unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

// NewEvent builds an event with the payload marshalled to JSON. A payload
// that fails to marshal is dropped rather than aborting the publish.
func NewEvent(t EventType, payload any) Event {
	e := Event{Type: t, Timestamp: time.Now()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			e.Payload = raw
		}
	}
	return e
}
