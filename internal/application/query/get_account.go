package query

import (
	"context"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACCOUNT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetAccountQuery fetches a single account view.
type GetAccountQuery struct {
	// AccountID is the account to fetch.
	AccountID string

	// ActorID is the requesting account; must equal AccountID.
	ActorID string
}

// Validate validates the query.
func (q *GetAccountQuery) Validate() error {
	if !shared.AccountID(q.AccountID).IsValid() {
		return shared.NewDomainError("query", "GetAccount", shared.ErrInvalidID, "account_id must be a valid UUID")
	}
	if !shared.AccountID(q.ActorID).IsValid() {
		return shared.NewDomainError("query", "GetAccount", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	return nil
}

// AccountDTO is the read-side representation of an account.
type AccountDTO struct {
	// AccountID identifies the account.
	AccountID string `json:"account_id"`

	// Email is the opened email address, or the redaction placeholder.
	Email string `json:"email"`

	// DisplayName is the opened display name, or the redaction placeholder.
	DisplayName string `json:"display_name"`

	// Language is the preferred language code.
	Language string `json:"language"`

	// Deleted reports whether the account has been deleted.
	Deleted bool `json:"deleted"`

	// CreatedAt is the sign-up timestamp.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last change timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// GetAccountHandler handles the GetAccountQuery.
type GetAccountHandler struct {
	views   projection.AccountViewRepository
	keyRepo crypto.KeyRepository
}

// NewGetAccountHandler creates a new GetAccountHandler.
func NewGetAccountHandler(views projection.AccountViewRepository, keyRepo crypto.KeyRepository) *GetAccountHandler {
	return &GetAccountHandler{views: views, keyRepo: keyRepo}
}

// Handle executes the get account query.
func (h *GetAccountHandler) Handle(ctx context.Context, q GetAccountQuery) (*AccountDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.ActorID != q.AccountID {
		return nil, shared.NewDomainError("query", "GetAccount", shared.ErrOwnershipViolation,
			"accounts can only be read by their owner")
	}

	row, err := h.views.Get(ctx, q.AccountID)
	if err != nil {
		return nil, err
	}

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()
	open := keys.OpenerFor(ctx, q.AccountID)

	email, err := open(row.SealedEmail)
	if err != nil {
		return nil, err
	}
	displayName, err := open(row.SealedDisplayName)
	if err != nil {
		return nil, err
	}

	return &AccountDTO{
		AccountID:   row.AccountID,
		Email:       email,
		DisplayName: displayName,
		Language:    row.Language,
		Deleted:     row.Deleted,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
