// Package crypto implements per-user sealing of sensitive event fields.
// Every account gets one symmetric key at sign-up; destroying that key is
// the erasure mechanism, rendering all historical sealed payloads
// permanently unreadable while the append-only log stays untouched.
package crypto

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Key is one account's symmetric key record.
type Key struct {
	AccountID string
	Bytes     []byte
	CreatedAt time.Time
}

// KeyRepository stores per-account encryption keys. Destroy is permanent:
// there is no soft delete and no recovery.
type KeyRepository interface {
	// Create generates and stores a fresh key for the account. Creating a
	// key for an account that already has one is an invalid operation.
	Create(ctx context.Context, accountID string) (*Key, error)

	// Get returns the account's key, or ErrKeyNotFound.
	Get(ctx context.Context, accountID string) (*Key, error)

	// Destroy permanently deletes the key record.
	Destroy(ctx context.Context, accountID string) error
}

// NewKeyBytes generates key material of the cipher's key size.
func NewKeyBytes() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := crand.Read(key); err != nil {
		return nil, shared.WrapError("crypto", "NewKeyBytes", shared.ErrSealFailed, "generate key material", err)
	}
	return key, nil
}

// MemoryKeyRepository is the in-memory KeyRepository used by tests and
// single-process deployments.
type MemoryKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]*Key
}

// NewMemoryKeyRepository creates an empty repository.
func NewMemoryKeyRepository() *MemoryKeyRepository {
	return &MemoryKeyRepository{keys: make(map[string]*Key)}
}

// Create implements KeyRepository.
func (r *MemoryKeyRepository) Create(ctx context.Context, accountID string) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[accountID]; exists {
		return nil, shared.NewDomainError("crypto", "Create", shared.ErrInvalidOperation,
			fmt.Sprintf("account %s already has a key", accountID))
	}

	bytes, err := NewKeyBytes()
	if err != nil {
		return nil, err
	}

	key := &Key{AccountID: accountID, Bytes: bytes, CreatedAt: time.Now().UTC()}
	r.keys[accountID] = key
	return key, nil
}

// Get implements KeyRepository.
func (r *MemoryKeyRepository) Get(ctx context.Context, accountID string) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keys[accountID]
	if !ok {
		return nil, shared.NewDomainError("crypto", "Get", shared.ErrKeyNotFound,
			fmt.Sprintf("no key for account %s", accountID))
	}
	return key, nil
}

// Destroy implements KeyRepository. Destroying an absent key is idempotent.
func (r *MemoryKeyRepository) Destroy(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.keys[accountID]; ok {
		for i := range key.Bytes {
			key.Bytes[i] = 0
		}
	}
	delete(r.keys, accountID)
	return nil
}
