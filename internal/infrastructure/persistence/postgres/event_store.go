package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// EventStore is the PostgreSQL shared.EventStore. Appends run in a single
// transaction and rely on the (stream_id, stream_version) unique constraint:
// of two concurrent writers at the same expected version, exactly one commit
// succeeds and the other surfaces ErrConcurrencyConflict.
type EventStore struct {
	conn *Connection
}

// NewEventStore creates an EventStore on the given connection.
func NewEventStore(conn *Connection) *EventStore {
	return &EventStore{conn: conn}
}

// Append implements shared.EventStore.
func (s *EventStore) Append(ctx context.Context, streamID string, events []shared.Event, expectedVersion int) (int, error) {
	if len(events) == 0 {
		return 0, shared.NewDomainError("postgres", "Append", shared.ErrInvalidInput, "empty event batch")
	}
	if expectedVersion < 0 {
		return 0, shared.NewDomainError("postgres", "Append", shared.ErrInvalidInput, "expected version cannot be negative")
	}

	// Encode everything before touching the database so a marshalling
	// failure cannot leave a partial batch behind.
	records := make([]shared.StoredEvent, len(events))
	for i, event := range events {
		record, err := shared.Encode(event)
		if err != nil {
			return 0, err
		}
		record.StreamVersion = expectedVersion + i + 1
		records[i] = record
	}

	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(stream_version), 0) FROM events WHERE stream_id = $1`,
			streamID,
		).Scan(&current)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return shared.NewDomainError("postgres", "Append", shared.ErrConcurrencyConflict,
				fmt.Sprintf("stream %s is at version %d, expected %d", streamID, current, expectedVersion))
		}

		for _, record := range records {
			_, err := tx.Exec(ctx, `
				INSERT INTO events (stream_id, type, payload, occurred_on, stream_version, user_id, request_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				record.StreamID,
				string(record.Type),
				record.Payload,
				record.OccurredOn,
				record.StreamVersion,
				record.UserID,
				record.RequestID,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, shared.WrapError("postgres", "Append", shared.ErrConcurrencyConflict,
				fmt.Sprintf("concurrent append to stream %s at version %d", streamID, expectedVersion), err)
		}
		return 0, err
	}

	return expectedVersion + len(events), nil
}

// Load implements shared.EventStore.
func (s *EventStore) Load(ctx context.Context, streamID string) (*shared.Stream, error) {
	return s.load(ctx, streamID, `
		SELECT stream_id, type, payload, occurred_on, stream_version, user_id, request_id
		FROM events
		WHERE stream_id = $1
		ORDER BY stream_version`, streamID)
}

// LoadAsOf implements shared.EventStore.
func (s *EventStore) LoadAsOf(ctx context.Context, streamID string, asOf time.Time) (*shared.Stream, error) {
	return s.load(ctx, streamID, `
		SELECT stream_id, type, payload, occurred_on, stream_version, user_id, request_id
		FROM events
		WHERE stream_id = $1 AND occurred_on <= $2
		ORDER BY stream_version`, streamID, asOf)
}

func (s *EventStore) load(ctx context.Context, streamID, query string, args ...interface{}) (*shared.Stream, error) {
	records, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, shared.NewDomainError("postgres", "Load", shared.ErrStreamNotFound,
			fmt.Sprintf("stream %s has no events", streamID))
	}
	return shared.NewStream(records), nil
}

// ByType implements shared.EventStore.
func (s *EventStore) ByType(ctx context.Context, eventType shared.EventType, limit int) ([]shared.StoredEvent, error) {
	return s.queryRecords(ctx, `
		SELECT stream_id, type, payload, occurred_on, stream_version, user_id, request_id
		FROM events
		WHERE type = $1
		ORDER BY occurred_on
		LIMIT $2`, string(eventType), normalizeLimit(limit))
}

// ByUser implements shared.EventStore.
func (s *EventStore) ByUser(ctx context.Context, userID string, limit int) ([]shared.StoredEvent, error) {
	return s.queryRecords(ctx, `
		SELECT stream_id, type, payload, occurred_on, stream_version, user_id, request_id
		FROM events
		WHERE user_id = $1
		ORDER BY occurred_on
		LIMIT $2`, userID, normalizeLimit(limit))
}

// ByWindow implements shared.EventStore.
func (s *EventStore) ByWindow(ctx context.Context, from, to time.Time, limit int) ([]shared.StoredEvent, error) {
	return s.queryRecords(ctx, `
		SELECT stream_id, type, payload, occurred_on, stream_version, user_id, request_id
		FROM events
		WHERE occurred_on >= $1 AND occurred_on <= $2
		ORDER BY occurred_on
		LIMIT $3`, from, to, normalizeLimit(limit))
}

func (s *EventStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]shared.StoredEvent, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []shared.StoredEvent
	for rows.Next() {
		var record shared.StoredEvent
		var eventType string
		if err := rows.Scan(
			&record.StreamID,
			&eventType,
			&record.Payload,
			&record.OccurredOn,
			&record.StreamVersion,
			&record.UserID,
			&record.RequestID,
		); err != nil {
			return nil, err
		}
		record.Type = shared.EventType(eventType)
		record.OccurredOn = record.OccurredOn.UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
