package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

// EnvelopeViewRepository is the in-memory projection.EnvelopeViewRepository.
type EnvelopeViewRepository struct {
	mu   sync.RWMutex
	rows map[string]projection.EnvelopeView
}

// NewEnvelopeViewRepository creates an empty repository.
func NewEnvelopeViewRepository() *EnvelopeViewRepository {
	return &EnvelopeViewRepository{rows: make(map[string]projection.EnvelopeView)}
}

// Upsert implements projection.EnvelopeViewRepository.
func (r *EnvelopeViewRepository) Upsert(ctx context.Context, view projection.EnvelopeView) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[view.EnvelopeID] = view
	return nil
}

// Get implements projection.EnvelopeViewRepository.
func (r *EnvelopeViewRepository) Get(ctx context.Context, envelopeID string) (*projection.EnvelopeView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	view, ok := r.rows[envelopeID]
	if !ok {
		return nil, shared.NewDomainError("views", "Get", shared.ErrViewNotFound,
			fmt.Sprintf("no envelope view for %s", envelopeID))
	}
	return &view, nil
}

// ListByOwner implements projection.EnvelopeViewRepository.
func (r *EnvelopeViewRepository) ListByOwner(ctx context.Context, ownerID string) ([]projection.EnvelopeView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []projection.EnvelopeView
	for _, view := range r.rows {
		if view.OwnerID == ownerID && !view.Deleted {
			out = append(out, view)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkDeleted implements projection.EnvelopeViewRepository. Marking an
// absent row is a no-op so that re-ordered deliveries do not fail.
func (r *EnvelopeViewRepository) MarkDeleted(ctx context.Context, envelopeID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	view, ok := r.rows[envelopeID]
	if !ok {
		return nil
	}
	view.Deleted = true
	view.UpdatedAt = at
	r.rows[envelopeID] = view
	return nil
}

// AccountViewRepository is the in-memory projection.AccountViewRepository.
type AccountViewRepository struct {
	mu   sync.RWMutex
	rows map[string]projection.AccountView
}

// NewAccountViewRepository creates an empty repository.
func NewAccountViewRepository() *AccountViewRepository {
	return &AccountViewRepository{rows: make(map[string]projection.AccountView)}
}

// Upsert implements projection.AccountViewRepository.
func (r *AccountViewRepository) Upsert(ctx context.Context, view projection.AccountView) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[view.AccountID] = view
	return nil
}

// Get implements projection.AccountViewRepository.
func (r *AccountViewRepository) Get(ctx context.Context, accountID string) (*projection.AccountView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	view, ok := r.rows[accountID]
	if !ok {
		return nil, shared.NewDomainError("views", "Get", shared.ErrViewNotFound,
			fmt.Sprintf("no account view for %s", accountID))
	}
	return &view, nil
}

// MarkDeleted implements projection.AccountViewRepository.
func (r *AccountViewRepository) MarkDeleted(ctx context.Context, accountID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	view, ok := r.rows[accountID]
	if !ok {
		return nil
	}
	view.Deleted = true
	view.UpdatedAt = at
	r.rows[accountID] = view
	return nil
}
