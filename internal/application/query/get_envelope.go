// Package query contains read operations (CQRS - Queries).
//
// Queries read from the projected views, never from event streams. Sealed
// personal fields are opened here with the owner's key; once the key is
// destroyed they come back redacted, which is exactly the erasure contract.
package query

import (
	"context"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ENVELOPE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetEnvelopeQuery fetches a single envelope view.
type GetEnvelopeQuery struct {
	// EnvelopeID is the envelope to fetch.
	EnvelopeID string

	// ActorID is the requesting account; must be the owner.
	ActorID string
}

// Validate validates the query.
func (q *GetEnvelopeQuery) Validate() error {
	if !shared.EnvelopeID(q.EnvelopeID).IsValid() {
		return shared.NewDomainError("query", "GetEnvelope", shared.ErrInvalidID, "envelope_id must be a valid UUID")
	}
	if !shared.AccountID(q.ActorID).IsValid() {
		return shared.NewDomainError("query", "GetEnvelope", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	return nil
}

// EnvelopeDTO is the read-side representation of an envelope.
type EnvelopeDTO struct {
	// EnvelopeID identifies the envelope.
	EnvelopeID string `json:"envelope_id"`

	// Name is the opened envelope name, or the redaction placeholder.
	Name string `json:"name"`

	// TargetedAmount is the savings target as a decimal string.
	TargetedAmount string `json:"targeted_amount"`

	// CurrentAmount is the balance as a decimal string.
	CurrentAmount string `json:"current_amount"`

	// Currency is the three-letter currency code.
	Currency string `json:"currency"`

	// Deleted reports whether the envelope has been deleted.
	Deleted bool `json:"deleted"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last change timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// GetEnvelopeHandler handles the GetEnvelopeQuery.
type GetEnvelopeHandler struct {
	views   projection.EnvelopeViewRepository
	keyRepo crypto.KeyRepository
}

// NewGetEnvelopeHandler creates a new GetEnvelopeHandler.
func NewGetEnvelopeHandler(views projection.EnvelopeViewRepository, keyRepo crypto.KeyRepository) *GetEnvelopeHandler {
	return &GetEnvelopeHandler{views: views, keyRepo: keyRepo}
}

// Handle executes the get envelope query.
func (h *GetEnvelopeHandler) Handle(ctx context.Context, q GetEnvelopeQuery) (*EnvelopeDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	row, err := h.views.Get(ctx, q.EnvelopeID)
	if err != nil {
		return nil, err
	}
	if row.OwnerID != q.ActorID {
		return nil, shared.NewDomainError("query", "GetEnvelope", shared.ErrOwnershipViolation,
			"envelope belongs to another account")
	}

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	name, err := keys.OpenerFor(ctx, row.OwnerID)(row.Name)
	if err != nil {
		return nil, err
	}

	return &EnvelopeDTO{
		EnvelopeID:     row.EnvelopeID,
		Name:           name,
		TargetedAmount: shared.Money(row.TargetedAmount).String(),
		CurrentAmount:  shared.Money(row.CurrentAmount).String(),
		Currency:       row.Currency,
		Deleted:        row.Deleted,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}
