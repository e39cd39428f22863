package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
)

// KeyRepository is the PostgreSQL crypto.KeyRepository. Destroy issues a
// hard DELETE; once the row is gone the account's sealed history is
// unreadable forever.
type KeyRepository struct {
	conn *Connection
}

// NewKeyRepository creates the repository.
func NewKeyRepository(conn *Connection) *KeyRepository {
	return &KeyRepository{conn: conn}
}

// Create implements crypto.KeyRepository.
func (r *KeyRepository) Create(ctx context.Context, accountID string) (*crypto.Key, error) {
	bytes, err := crypto.NewKeyBytes()
	if err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	_, err = r.conn.Exec(ctx, `
		INSERT INTO encryption_keys (account_id, key_bytes, created_at)
		VALUES ($1, $2, $3)`,
		accountID, bytes, createdAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, shared.NewDomainError("postgres", "Create", shared.ErrInvalidOperation,
				fmt.Sprintf("account %s already has a key", accountID))
		}
		return nil, err
	}

	return &crypto.Key{AccountID: accountID, Bytes: bytes, CreatedAt: createdAt}, nil
}

// Get implements crypto.KeyRepository.
func (r *KeyRepository) Get(ctx context.Context, accountID string) (*crypto.Key, error) {
	key := &crypto.Key{AccountID: accountID}
	err := r.conn.QueryRow(ctx, `
		SELECT key_bytes, created_at
		FROM encryption_keys
		WHERE account_id = $1`, accountID,
	).Scan(&key.Bytes, &key.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "Get", shared.ErrKeyNotFound,
				fmt.Sprintf("no key for account %s", accountID))
		}
		return nil, err
	}
	return key, nil
}

// Destroy implements crypto.KeyRepository. Destroying an absent key is
// idempotent.
func (r *KeyRepository) Destroy(ctx context.Context, accountID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM encryption_keys WHERE account_id = $1`, accountID)
	return err
}
