package eventhandler

import (
	"context"
	"log/slog"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// NameIndexProjector mirrors registry events into the best-effort name
// index. Index write failures are logged and dropped: a stale or missing
// index entry only costs an extra registry round trip, never correctness.
type NameIndexProjector struct {
	index  NameIndex
	logger *slog.Logger
}

// NewNameIndexProjector creates the projector.
func NewNameIndexProjector(index NameIndex, logger *slog.Logger) *NameIndexProjector {
	if logger == nil {
		logger = slog.Default()
	}
	return &NameIndexProjector{index: index, logger: logger}
}

// Name implements projection.Projection.
func (p *NameIndexProjector) Name() string { return "name-index" }

// Handles implements projection.Projection.
func (p *NameIndexProjector) Handles() []shared.EventType {
	return []shared.EventType{
		shared.EventRegistryRegistered,
		shared.EventRegistryReleased,
	}
}

// Handle implements projection.Projection.
func (p *NameIndexProjector) Handle(ctx context.Context, event shared.Event) error {
	var err error

	switch ev := event.(type) {
	case *registry.RegisteredEvent:
		err = p.index.Mark(ctx, ev.AggregateId, ev.Key)
	case *registry.ReleasedEvent:
		err = p.index.Unmark(ctx, ev.AggregateId, ev.Key)
	default:
		return nil
	}

	if err != nil {
		p.logger.Warn("name index update failed",
			"event_type", event.EventType(),
			"scope", event.AggregateID(),
			"error", err,
		)
	}
	return nil
}
