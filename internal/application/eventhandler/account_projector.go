package eventhandler

import (
	"context"
	"errors"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/account"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

// AccountProjector folds account events into the account read view. The
// sealed email and display name are stored as-is; the view never holds
// plaintext personal data.
type AccountProjector struct {
	views projection.AccountViewRepository
}

// NewAccountProjector creates the projector.
func NewAccountProjector(views projection.AccountViewRepository) *AccountProjector {
	return &AccountProjector{views: views}
}

// Name implements projection.Projection.
func (p *AccountProjector) Name() string { return "account-view" }

// Handles implements projection.Projection.
func (p *AccountProjector) Handles() []shared.EventType {
	return []shared.EventType{
		shared.EventAccountSignedUp,
		shared.EventAccountRenamed,
		shared.EventAccountDeleted,
	}
}

// Handle implements projection.Projection.
func (p *AccountProjector) Handle(ctx context.Context, event shared.Event) error {
	switch ev := event.(type) {
	case *account.SignedUpEvent:
		return p.views.Upsert(ctx, projection.AccountView{
			AccountID:         ev.AggregateId,
			SealedEmail:       ev.Email,
			SealedDisplayName: ev.DisplayName,
			Language:          ev.Language,
			CreatedAt:         ev.Timestamp,
			UpdatedAt:         ev.Timestamp,
		})

	case *account.RenamedEvent:
		row, err := p.views.Get(ctx, ev.AggregateId)
		if err != nil {
			if errors.Is(err, shared.ErrViewNotFound) {
				return nil
			}
			return err
		}
		row.SealedDisplayName = ev.DisplayName
		row.UpdatedAt = ev.Timestamp
		return p.views.Upsert(ctx, *row)

	case *account.DeletedEvent:
		return p.views.MarkDeleted(ctx, ev.AggregateId, ev.Timestamp)

	default:
		return nil
	}
}
