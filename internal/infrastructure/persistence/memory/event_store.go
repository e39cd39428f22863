// Package memory implements in-memory persistence for the event store and
// read models. It mirrors the Postgres implementations contract-for-contract
// and backs unit tests as well as single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// EventStore is a mutex-guarded, append-only store of event streams.
type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]shared.StoredEvent
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		streams: make(map[string][]shared.StoredEvent),
	}
}

// Append implements shared.EventStore. The whole batch is stamped and
// stored under one lock, so no partial append is ever observable.
func (s *EventStore) Append(ctx context.Context, streamID string, events []shared.Event, expectedVersion int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, shared.NewDomainError("eventstore", "Append", shared.ErrInvalidInput, "no events to append")
	}

	records := make([]shared.StoredEvent, 0, len(events))
	for i, event := range events {
		record, err := shared.Encode(event)
		if err != nil {
			return 0, err
		}
		record.StreamID = streamID
		record.StreamVersion = expectedVersion + i + 1
		records = append(records, record)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[streamID])
	if current != expectedVersion {
		return 0, shared.NewDomainError("eventstore", "Append", shared.ErrConcurrencyConflict,
			fmt.Sprintf("stream %s is at version %d, expected %d", streamID, current, expectedVersion))
	}

	s.streams[streamID] = append(s.streams[streamID], records...)
	return len(s.streams[streamID]), nil
}

// Load implements shared.EventStore.
func (s *EventStore) Load(ctx context.Context, streamID string) (*shared.Stream, error) {
	return s.load(ctx, streamID, nil)
}

// LoadAsOf implements shared.EventStore.
func (s *EventStore) LoadAsOf(ctx context.Context, streamID string, asOf time.Time) (*shared.Stream, error) {
	return s.load(ctx, streamID, &asOf)
}

func (s *EventStore) load(ctx context.Context, streamID string, asOf *time.Time) (*shared.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.streams[streamID]
	if !ok || len(records) == 0 {
		return nil, shared.NewDomainError("eventstore", "Load", shared.ErrStreamNotFound,
			fmt.Sprintf("stream %s has no records", streamID))
	}

	out := make([]shared.StoredEvent, 0, len(records))
	for _, record := range records {
		if asOf != nil && record.OccurredOn.After(*asOf) {
			continue
		}
		out = append(out, record)
	}

	if len(out) == 0 {
		return nil, shared.NewDomainError("eventstore", "Load", shared.ErrStreamNotFound,
			fmt.Sprintf("stream %s has no records as of %s", streamID, asOf.Format(time.RFC3339)))
	}

	return shared.NewStream(out), nil
}

// ByType implements the audit read path.
func (s *EventStore) ByType(ctx context.Context, eventType shared.EventType, limit int) ([]shared.StoredEvent, error) {
	return s.scan(ctx, limit, func(record shared.StoredEvent) bool {
		return record.Type == eventType
	})
}

// ByUser implements the audit read path.
func (s *EventStore) ByUser(ctx context.Context, userID string, limit int) ([]shared.StoredEvent, error) {
	return s.scan(ctx, limit, func(record shared.StoredEvent) bool {
		return record.UserID == userID
	})
}

// ByWindow implements the audit read path.
func (s *EventStore) ByWindow(ctx context.Context, from, to time.Time, limit int) ([]shared.StoredEvent, error) {
	return s.scan(ctx, limit, func(record shared.StoredEvent) bool {
		return !record.OccurredOn.Before(from) && !record.OccurredOn.After(to)
	})
}

func (s *EventStore) scan(ctx context.Context, limit int, match func(shared.StoredEvent) bool) ([]shared.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []shared.StoredEvent
	for _, records := range s.streams {
		for _, record := range records {
			if match(record) {
				out = append(out, record)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredOn.Equal(out[j].OccurredOn) {
			return out[i].StreamVersion < out[j].StreamVersion
		}
		return out[i].OccurredOn.Before(out[j].OccurredOn)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CurrentVersion returns the persisted version of a stream, 0 if absent.
func (s *EventStore) CurrentVersion(streamID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[streamID])
}
