package eventhandler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/envelope"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
	"github.com/budget-hub/budget-envelope-hub/pkg/circuitbreaker"
)

// EnvelopeProjector folds envelope events into the envelope read view.
// Name fields arrive sealed and are stored as opaque ciphertext; opening
// them is the presentation layer's concern, outside this engine.
type EnvelopeProjector struct {
	views    projection.EnvelopeViewRepository
	notifier Notifier
	breaker  *circuitbreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewEnvelopeProjector creates the projector. notifier may be nil when no
// cross-context notifications are wanted.
func NewEnvelopeProjector(views projection.EnvelopeViewRepository, notifier Notifier, logger *slog.Logger) *EnvelopeProjector {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.NotifierBreaker("envelope-notifier", func(name string, from, to circuitbreaker.State) {
		logger.Info("notifier breaker state change", "breaker", name, "from", from.String(), "to", to.String())
	})
	return &EnvelopeProjector{
		views:    views,
		notifier: notifier,
		breaker:  breaker,
		logger:   logger,
	}
}

// Name implements projection.Projection.
func (p *EnvelopeProjector) Name() string { return "envelope-view" }

// Handles implements projection.Projection.
func (p *EnvelopeProjector) Handles() []shared.EventType {
	return []shared.EventType{
		shared.EventEnvelopeCreated,
		shared.EventEnvelopeRenamed,
		shared.EventEnvelopeCredited,
		shared.EventEnvelopeDebited,
		shared.EventEnvelopeTargetChanged,
		shared.EventEnvelopeDeleted,
		shared.EventEnvelopeRewound,
		shared.EventEnvelopeReplayed,
	}
}

// Handle implements projection.Projection. Applying the same event twice
// converges on the same row: balances come from the event's authoritative
// total, never from re-adding a delta.
func (p *EnvelopeProjector) Handle(ctx context.Context, event shared.Event) error {
	var err error

	switch ev := event.(type) {
	case *envelope.CreatedEvent:
		err = p.views.Upsert(ctx, projection.EnvelopeView{
			EnvelopeID:     ev.AggregateId,
			OwnerID:        ev.UserId,
			Name:           ev.Name,
			TargetedAmount: ev.TargetedAmount,
			CurrentAmount:  0,
			Currency:       ev.Currency,
			CreatedAt:      ev.Timestamp,
			UpdatedAt:      ev.Timestamp,
		})

	case *envelope.RenamedEvent:
		err = p.update(ctx, ev.AggregateId, ev.Timestamp, func(row *projection.EnvelopeView) {
			row.Name = ev.Name
		})

	case *envelope.CreditedEvent:
		err = p.update(ctx, ev.AggregateId, ev.Timestamp, func(row *projection.EnvelopeView) {
			row.CurrentAmount = ev.NewBalance
		})

	case *envelope.DebitedEvent:
		err = p.update(ctx, ev.AggregateId, ev.Timestamp, func(row *projection.EnvelopeView) {
			row.CurrentAmount = ev.NewBalance
		})

	case *envelope.TargetChangedEvent:
		err = p.update(ctx, ev.AggregateId, ev.Timestamp, func(row *projection.EnvelopeView) {
			row.TargetedAmount = ev.TargetedAmount
		})

	case *envelope.DeletedEvent:
		err = p.views.MarkDeleted(ctx, ev.AggregateId, ev.Timestamp)

	case *envelope.RewoundEvent:
		// Rewind and replay exist to resynchronize read models, so they
		// recreate a lost row instead of no-opping on absence.
		err = p.views.Upsert(ctx, snapshotRow(ev.AggregateId, ev.UserId, ev.Snapshot, ev.Timestamp))

	case *envelope.ReplayedEvent:
		err = p.views.Upsert(ctx, snapshotRow(ev.AggregateId, ev.UserId, ev.Snapshot, ev.Timestamp))

	default:
		// Not an envelope event; declared Handles make this unreachable.
		return nil
	}

	if err != nil {
		return err
	}

	p.notify(ctx, event)
	return nil
}

// update applies a field mutation to an existing row. An absent row for a
// non-creation event is a no-op: the pipeline may deliver out of order
// across streams and the row's creation may still be in flight.
func (p *EnvelopeProjector) update(ctx context.Context, envelopeID string, at time.Time, mutate func(*projection.EnvelopeView)) error {
	row, err := p.views.Get(ctx, envelopeID)
	if err != nil {
		if errors.Is(err, shared.ErrViewNotFound) {
			return nil
		}
		return err
	}

	mutate(row)
	row.UpdatedAt = at
	return p.views.Upsert(ctx, *row)
}

// notify attempts the cross-context publish after the primary write. Its
// failures, including an open breaker, are logged and discarded.
func (p *EnvelopeProjector) notify(ctx context.Context, event shared.Event) {
	if p.notifier == nil {
		return
	}

	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.notifier.Notify(ctx, event)
	})
	if err != nil {
		p.logger.Warn("notification publish failed",
			"event_type", event.EventType(),
			"stream", event.AggregateID(),
			"error", err,
		)
	}
}

func snapshotRow(envelopeID, ownerID string, s envelope.Snapshot, at time.Time) projection.EnvelopeView {
	return projection.EnvelopeView{
		EnvelopeID:     envelopeID,
		OwnerID:        ownerID,
		Name:           s.Name,
		TargetedAmount: s.TargetedAmount,
		CurrentAmount:  s.CurrentAmount,
		Currency:       s.Currency,
		Deleted:        s.Deleted,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      at,
	}
}
