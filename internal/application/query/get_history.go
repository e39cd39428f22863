package query

import (
	"context"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HISTORY QUERY
// Audit reads straight off the stored log. Payloads are returned as stored,
// sealed fields included; this surface is for operators inspecting the log,
// not for presenting personal data.
// ══════════════════════════════════════════════════════════════════════════════

// GetHistoryQuery lists stored event records for audit purposes. Exactly
// one filter must be set.
type GetHistoryQuery struct {
	// StreamID filters by a single stream.
	StreamID string

	// EventType filters by event type across streams.
	EventType string

	// UserID filters by acting user across streams.
	UserID string

	// From and To bound a time-window filter; both must be set together.
	From time.Time
	To   time.Time

	// Limit caps the number of records (default 100, max 1000).
	Limit int
}

// Validate validates the query and applies defaults.
func (q *GetHistoryQuery) Validate() error {
	filters := 0
	if q.StreamID != "" {
		filters++
	}
	if q.EventType != "" {
		filters++
	}
	if q.UserID != "" {
		filters++
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		if q.From.IsZero() || q.To.IsZero() || q.To.Before(q.From) {
			return shared.NewDomainError("query", "GetHistory", shared.ErrInvalidInput, "time window requires from <= to")
		}
		filters++
	}
	if filters != 1 {
		return shared.NewDomainError("query", "GetHistory", shared.ErrInvalidInput, "exactly one filter must be set")
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}
	return nil
}

// GetHistoryHandler handles the GetHistoryQuery.
type GetHistoryHandler struct {
	store shared.EventStore
}

// NewGetHistoryHandler creates a new GetHistoryHandler.
func NewGetHistoryHandler(store shared.EventStore) *GetHistoryHandler {
	return &GetHistoryHandler{store: store}
}

// Handle executes the get history query.
func (h *GetHistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) ([]shared.StoredEvent, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	switch {
	case q.StreamID != "":
		stream, err := h.store.Load(ctx, q.StreamID)
		if err != nil {
			return nil, err
		}
		records := stream.Collect()
		if len(records) > q.Limit {
			records = records[:q.Limit]
		}
		return records, nil

	case q.EventType != "":
		return h.store.ByType(ctx, shared.EventType(q.EventType), q.Limit)

	case q.UserID != "":
		return h.store.ByUser(ctx, q.UserID, q.Limit)

	default:
		return h.store.ByWindow(ctx, q.From, q.To, q.Limit)
	}
}
