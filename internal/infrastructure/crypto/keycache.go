package crypto

import (
	"context"
	"errors"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// RedactedPlaceholder replaces sealed fields whose key has been destroyed.
// Erased users stay replayable; their personal fields do not.
const RedactedPlaceholder = "[erased]"

// KeyCache caches one account's key for the lifetime of a single command
// invocation. Command handlers acquire it at the start and defer Clear; the
// key is never persisted alongside aggregate state or logged.
type KeyCache struct {
	repo KeyRepository
	keys map[string][]byte
}

// NewKeyCache creates a cache backed by the given repository.
func NewKeyCache(repo KeyRepository) *KeyCache {
	return &KeyCache{
		repo: repo,
		keys: make(map[string][]byte),
	}
}

// SealerFor returns a shared.SealFn bound to the account's key, loading it
// on first use. Sealing for an account without a key is an error: keys are
// created at sign-up, before anything needs sealing.
func (c *KeyCache) SealerFor(ctx context.Context, accountID string) shared.SealFn {
	return func(plaintext string) (string, error) {
		key, err := c.acquire(ctx, accountID)
		if err != nil {
			return "", err
		}
		return Seal(key, plaintext)
	}
}

// OpenerFor returns a shared.OpenFn bound to the account's key. A missing
// (destroyed) key does not fail the fold: the field comes back redacted.
func (c *KeyCache) OpenerFor(ctx context.Context, accountID string) shared.OpenFn {
	return func(sealed string) (string, error) {
		key, err := c.acquire(ctx, accountID)
		if err != nil {
			if errors.Is(err, shared.ErrKeyNotFound) {
				return RedactedPlaceholder, nil
			}
			return "", err
		}
		return Open(key, sealed)
	}
}

func (c *KeyCache) acquire(ctx context.Context, accountID string) ([]byte, error) {
	if key, ok := c.keys[accountID]; ok {
		return key, nil
	}

	record, err := c.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	key := make([]byte, len(record.Bytes))
	copy(key, record.Bytes)
	c.keys[accountID] = key
	return key, nil
}

// Clear zeroes and forgets every cached key. Handlers defer it so the cache
// dies with the command, on success and on failure alike.
func (c *KeyCache) Clear() {
	for id, key := range c.keys {
		for i := range key {
			key[i] = 0
		}
		delete(c.keys, id)
	}
}
