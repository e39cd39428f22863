package query

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ENVELOPES QUERY
// Lists an account's live envelopes from the read model, oldest first.
// ══════════════════════════════════════════════════════════════════════════════

// ListEnvelopesQuery lists the envelopes owned by an account.
type ListEnvelopesQuery struct {
	// OwnerID is the account whose envelopes are listed.
	OwnerID string

	// Limit caps the number of results (default 50, max 200).
	Limit int
}

// Validate validates the query and applies defaults.
func (q *ListEnvelopesQuery) Validate() error {
	if !shared.AccountID(q.OwnerID).IsValid() {
		return shared.NewDomainError("query", "ListEnvelopes", shared.ErrInvalidID, "owner_id must be a valid UUID")
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	return nil
}

// ListEnvelopesHandler handles the ListEnvelopesQuery.
type ListEnvelopesHandler struct {
	views   projection.EnvelopeViewRepository
	keyRepo crypto.KeyRepository
}

// NewListEnvelopesHandler creates a new ListEnvelopesHandler.
func NewListEnvelopesHandler(views projection.EnvelopeViewRepository, keyRepo crypto.KeyRepository) *ListEnvelopesHandler {
	return &ListEnvelopesHandler{views: views, keyRepo: keyRepo}
}

// Handle executes the list envelopes query.
func (h *ListEnvelopesHandler) Handle(ctx context.Context, q ListEnvelopesQuery) ([]EnvelopeDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := h.views.ListByOwner(ctx, q.OwnerID)
	if err != nil {
		return nil, err
	}
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()
	open := keys.OpenerFor(ctx, q.OwnerID)

	result := make([]EnvelopeDTO, 0, len(rows))
	for _, row := range rows {
		name, err := open(row.Name)
		if err != nil {
			return nil, err
		}
		result = append(result, EnvelopeDTO{
			EnvelopeID:     row.EnvelopeID,
			Name:           name,
			TargetedAmount: shared.Money(row.TargetedAmount).String(),
			CurrentAmount:  shared.Money(row.CurrentAmount).String(),
			Currency:       row.Currency,
			Deleted:        row.Deleted,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		})
	}
	return result, nil
}
