package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

// EnvelopeViewRepository is the PostgreSQL projection.EnvelopeViewRepository.
type EnvelopeViewRepository struct {
	conn *Connection
}

// NewEnvelopeViewRepository creates the repository.
func NewEnvelopeViewRepository(conn *Connection) *EnvelopeViewRepository {
	return &EnvelopeViewRepository{conn: conn}
}

// Upsert implements projection.EnvelopeViewRepository.
func (r *EnvelopeViewRepository) Upsert(ctx context.Context, view projection.EnvelopeView) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO envelope_views (envelope_id, owner_id, name, targeted_amount, current_amount, currency, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (envelope_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			targeted_amount = EXCLUDED.targeted_amount,
			current_amount = EXCLUDED.current_amount,
			currency = EXCLUDED.currency,
			deleted = EXCLUDED.deleted,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`,
		view.EnvelopeID,
		view.OwnerID,
		view.Name,
		view.TargetedAmount,
		view.CurrentAmount,
		view.Currency,
		view.Deleted,
		view.CreatedAt,
		view.UpdatedAt,
	)
	return err
}

// Get implements projection.EnvelopeViewRepository.
func (r *EnvelopeViewRepository) Get(ctx context.Context, envelopeID string) (*projection.EnvelopeView, error) {
	var view projection.EnvelopeView
	err := r.conn.QueryRow(ctx, `
		SELECT envelope_id, owner_id, name, targeted_amount, current_amount, currency, deleted, created_at, updated_at
		FROM envelope_views
		WHERE envelope_id = $1`, envelopeID,
	).Scan(
		&view.EnvelopeID,
		&view.OwnerID,
		&view.Name,
		&view.TargetedAmount,
		&view.CurrentAmount,
		&view.Currency,
		&view.Deleted,
		&view.CreatedAt,
		&view.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "Get", shared.ErrViewNotFound,
				fmt.Sprintf("no envelope view for %s", envelopeID))
		}
		return nil, err
	}
	return &view, nil
}

// ListByOwner implements projection.EnvelopeViewRepository.
func (r *EnvelopeViewRepository) ListByOwner(ctx context.Context, ownerID string) ([]projection.EnvelopeView, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT envelope_id, owner_id, name, targeted_amount, current_amount, currency, deleted, created_at, updated_at
		FROM envelope_views
		WHERE owner_id = $1 AND NOT deleted
		ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []projection.EnvelopeView
	for rows.Next() {
		var view projection.EnvelopeView
		if err := rows.Scan(
			&view.EnvelopeID,
			&view.OwnerID,
			&view.Name,
			&view.TargetedAmount,
			&view.CurrentAmount,
			&view.Currency,
			&view.Deleted,
			&view.CreatedAt,
			&view.UpdatedAt,
		); err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

// MarkDeleted implements projection.EnvelopeViewRepository. Marking an
// absent row is a no-op so that re-delivered deletions stay idempotent.
func (r *EnvelopeViewRepository) MarkDeleted(ctx context.Context, envelopeID string, at time.Time) error {
	_, err := r.conn.Exec(ctx, `
		UPDATE envelope_views
		SET deleted = TRUE, updated_at = $2
		WHERE envelope_id = $1`, envelopeID, at)
	return err
}
