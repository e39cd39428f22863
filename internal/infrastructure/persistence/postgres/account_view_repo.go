package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

// AccountViewRepository is the PostgreSQL projection.AccountViewRepository.
type AccountViewRepository struct {
	conn *Connection
}

// NewAccountViewRepository creates the repository.
func NewAccountViewRepository(conn *Connection) *AccountViewRepository {
	return &AccountViewRepository{conn: conn}
}

// Upsert implements projection.AccountViewRepository.
func (r *AccountViewRepository) Upsert(ctx context.Context, view projection.AccountView) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO account_views (account_id, sealed_email, sealed_display_name, language, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			sealed_email = EXCLUDED.sealed_email,
			sealed_display_name = EXCLUDED.sealed_display_name,
			language = EXCLUDED.language,
			deleted = EXCLUDED.deleted,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`,
		view.AccountID,
		view.SealedEmail,
		view.SealedDisplayName,
		view.Language,
		view.Deleted,
		view.CreatedAt,
		view.UpdatedAt,
	)
	return err
}

// Get implements projection.AccountViewRepository.
func (r *AccountViewRepository) Get(ctx context.Context, accountID string) (*projection.AccountView, error) {
	var view projection.AccountView
	err := r.conn.QueryRow(ctx, `
		SELECT account_id, sealed_email, sealed_display_name, language, deleted, created_at, updated_at
		FROM account_views
		WHERE account_id = $1`, accountID,
	).Scan(
		&view.AccountID,
		&view.SealedEmail,
		&view.SealedDisplayName,
		&view.Language,
		&view.Deleted,
		&view.CreatedAt,
		&view.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "Get", shared.ErrViewNotFound,
				fmt.Sprintf("no account view for %s", accountID))
		}
		return nil, err
	}
	return &view, nil
}

// MarkDeleted implements projection.AccountViewRepository.
func (r *AccountViewRepository) MarkDeleted(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.conn.Exec(ctx, `
		UPDATE account_views
		SET deleted = TRUE, updated_at = $2
		WHERE account_id = $1`, accountID, at)
	return err
}
