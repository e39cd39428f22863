package shared

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DecodeFunc turns a stored payload back into its typed domain event.
type DecodeFunc func(payload []byte) (Event, error)

var (
	decodersMu sync.RWMutex
	decoders   = make(map[EventType]DecodeFunc)
)

// RegisterDecoder binds a discriminator to its decode function. Event
// packages call this from init; registering the same type twice panics
// because it means two events claim one discriminator.
func RegisterDecoder(eventType EventType, decode DecodeFunc) {
	decodersMu.Lock()
	defer decodersMu.Unlock()

	if _, exists := decoders[eventType]; exists {
		panic(fmt.Sprintf("shared: decoder already registered for event type %q", eventType))
	}
	decoders[eventType] = decode
}

// Encode serializes a domain event into its stored form. The stream version
// is stamped by the event store at append time.
func Encode(event Event) (StoredEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return StoredEvent{}, WrapError("shared", "Encode", ErrInvalidInput, "marshal event payload", err)
	}

	return StoredEvent{
		StreamID:   event.AggregateID(),
		Type:       event.EventType(),
		Payload:    payload,
		OccurredOn: event.OccurredAt(),
		UserID:     event.UserID(),
		RequestID:  event.RequestID(),
	}, nil
}

// Decode turns a stored record back into its typed domain event. An
// unknown discriminator is a programming error, never a business error:
// it means an event was persisted without a registered decoder.
func Decode(record StoredEvent) (Event, error) {
	decodersMu.RLock()
	decode, ok := decoders[record.Type]
	decodersMu.RUnlock()

	if !ok {
		return nil, NewDomainError("shared", "Decode", ErrUnknownEventType,
			fmt.Sprintf("no decoder registered for event type %q", record.Type))
	}

	event, err := decode(record.Payload)
	if err != nil {
		return nil, WrapError("shared", "Decode", ErrCorruptStream,
			fmt.Sprintf("decode %q payload", record.Type), err)
	}
	return event, nil
}
