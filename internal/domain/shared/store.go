package shared

import (
	"context"
	"encoding/json"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// STORED EVENT - the authoritative on-disk contract
// ═══════════════════════════════════════════════════════════════════════════

// StoredEvent is the persisted form of a domain event. Records are immutable:
// they are appended once and never updated or deleted.
type StoredEvent struct {
	// StreamID is the aggregate the event belongs to.
	StreamID string `json:"stream_id"`

	// Type is the discriminator resolving to decode/apply logic.
	Type EventType `json:"type"`

	// Payload is the serialized event-type-specific document.
	Payload json.RawMessage `json:"payload"`

	// OccurredOn is the immutable point in time the event happened.
	OccurredOn time.Time `json:"occurred_on"`

	// StreamVersion is monotonic and gapless within the stream, starting at 1.
	StreamVersion int `json:"stream_version"`

	// UserID is the acting user.
	UserID string `json:"user_id"`

	// RequestID correlates the event with its originating command.
	RequestID string `json:"request_id"`
}

// ═══════════════════════════════════════════════════════════════════════════
// STREAM - finite, single-pass iteration over stored events
// ═══════════════════════════════════════════════════════════════════════════

// Stream is a finite, single-pass, non-restartable sequence of stored events
// in stream-version order. Consumers that need multiple passes must call
// Collect once and iterate the slice.
type Stream struct {
	records []StoredEvent
	pos     int
}

// NewStream wraps an ordered slice of records.
func NewStream(records []StoredEvent) *Stream {
	return &Stream{records: records}
}

// Next returns the next record, or false when the stream is exhausted.
func (s *Stream) Next() (*StoredEvent, bool) {
	if s.pos >= len(s.records) {
		return nil, false
	}
	rec := &s.records[s.pos]
	s.pos++
	return rec, true
}

// Collect materializes the remaining records and exhausts the stream.
func (s *Stream) Collect() []StoredEvent {
	rest := s.records[s.pos:]
	s.pos = len(s.records)
	return rest
}

// Len returns the total number of records in the stream.
func (s *Stream) Len() int {
	return len(s.records)
}

// ═══════════════════════════════════════════════════════════════════════════
// EVENT STORE
// ═══════════════════════════════════════════════════════════════════════════

// EventStore is append-only persistence of event records per stream with
// optimistic-concurrency writes and point-in-time reads.
type EventStore interface {
	// Append persists the events with versions expectedVersion+1, +2, ...
	// in a single atomic unit and returns the new stream version. It fails
	// with ErrConcurrencyConflict if the stream's current version differs
	// from expectedVersion; no partial append is ever observable. The store
	// never retries on conflict - retrying is the caller's explicit choice.
	Append(ctx context.Context, streamID string, events []Event, expectedVersion int) (int, error)

	// Load returns the full ordered stream, or ErrStreamNotFound when no
	// records exist. Callers distinguish "new aggregate" from "aggregate
	// must exist" by checking for that error.
	Load(ctx context.Context, streamID string) (*Stream, error)

	// LoadAsOf returns only records with OccurredOn <= asOf. This is the
	// sole mechanism behind rewind; the stored log itself is never touched.
	LoadAsOf(ctx context.Context, streamID string, asOf time.Time) (*Stream, error)

	// Secondary read paths for audit and replay tooling. They never feed
	// aggregate rehydration.
	ByType(ctx context.Context, eventType EventType, limit int) ([]StoredEvent, error)
	ByUser(ctx context.Context, userID string, limit int) ([]StoredEvent, error)
	ByWindow(ctx context.Context, from, to time.Time, limit int) ([]StoredEvent, error)
}
