package shared

import (
	"time"
)

// EventType represents the type of domain event. The string value is the
// discriminator persisted with every event record; it must resolve to the
// same decode/apply logic forever.
type EventType string

// Domain event types - these drive the event-sourced architecture.
// Each event represents a business fact that has already happened.
const (
	// Envelope events
	EventEnvelopeCreated       EventType = "envelope.created"
	EventEnvelopeRenamed       EventType = "envelope.renamed"
	EventEnvelopeCredited      EventType = "envelope.credited"
	EventEnvelopeDebited       EventType = "envelope.debited"
	EventEnvelopeTargetChanged EventType = "envelope.target_changed"
	EventEnvelopeDeleted       EventType = "envelope.deleted"
	EventEnvelopeRewound       EventType = "envelope.rewound"
	EventEnvelopeReplayed      EventType = "envelope.replayed"

	// Account events
	EventAccountSignedUp EventType = "account.signed_up"
	EventAccountRenamed  EventType = "account.renamed"
	EventAccountDeleted  EventType = "account.deleted"

	// Registry events
	EventRegistryRegistered EventType = "registry.registered"
	EventRegistryReleased   EventType = "registry.released"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the discriminator of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the stream the event belongs to.
	AggregateID() string

	// UserID returns the acting user, empty for system events.
	UserID() string

	// RequestID returns the correlation id of the originating command.
	RequestID() string
}

// BaseEvent provides common event functionality. Every concrete event
// embeds it and adds its own payload fields.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	UserId      string    `json:"user_id,omitempty"`
	RequestId   string    `json:"request_id,omitempty"`
}

// EventType implements Event.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// UserID implements Event.
func (e BaseEvent) UserID() string {
	return e.UserId
}

// RequestID implements Event.
func (e BaseEvent) RequestID() string {
	return e.RequestId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID, userID, requestID string, occurredAt time.Time) BaseEvent {
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return BaseEvent{
		Type:        eventType,
		Timestamp:   occurredAt.UTC(),
		AggregateId: aggregateID,
		UserId:      userID,
		RequestId:   requestID,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
