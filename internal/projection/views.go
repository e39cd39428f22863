// Package projection defines the denormalized read models and the
// repository ports they are persisted through. Views are eventually
// consistent mirrors of aggregates, keyed by the aggregate's business uuid,
// and are never authoritative: queries read them, commands never do.
package projection

import (
	"context"
	"time"
)

// EnvelopeView is the denormalized row mirroring one budget envelope.
type EnvelopeView struct {
	EnvelopeID     string    `json:"envelope_id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	TargetedAmount int64     `json:"targeted_amount"`
	CurrentAmount  int64     `json:"current_amount"`
	Currency       string    `json:"currency"`
	Deleted        bool      `json:"deleted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AccountView mirrors one user account. Personal fields hold the sealed
// ciphertexts as opaque strings; the view never sees plaintext PII.
type AccountView struct {
	AccountID         string    `json:"account_id"`
	SealedEmail       string    `json:"sealed_email"`
	SealedDisplayName string    `json:"sealed_display_name"`
	Language          string    `json:"language"`
	Deleted           bool      `json:"deleted"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EnvelopeViewRepository persists envelope rows. Upsert is create-or-update
// so that re-delivered creation events converge on a single row.
type EnvelopeViewRepository interface {
	Upsert(ctx context.Context, view EnvelopeView) error
	Get(ctx context.Context, envelopeID string) (*EnvelopeView, error)
	ListByOwner(ctx context.Context, ownerID string) ([]EnvelopeView, error)
	MarkDeleted(ctx context.Context, envelopeID string, at time.Time) error
}

// AccountViewRepository persists account rows.
type AccountViewRepository interface {
	Upsert(ctx context.Context, view AccountView) error
	Get(ctx context.Context, accountID string) (*AccountView, error)
	MarkDeleted(ctx context.Context, accountID string, at time.Time) error
}
