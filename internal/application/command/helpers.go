// Package command contains write operations (CQRS - Commands).
//
// Every handler follows the same cycle: load the stream, decode and open
// the events, fold the aggregate, invoke the mutation, then commit the
// raised events at the loaded version. Appends are never retried here; a
// concurrency conflict surfaces to the caller, who decides whether the
// whole cycle is worth re-running.
package command

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/account"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/envelope"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
)

// NameChecker answers, best effort, whether a name key is already taken in
// a registry scope. A cache miss or a checker error never blocks a command;
// the registry fold stays the only authoritative answer.
type NameChecker interface {
	IsTaken(ctx context.Context, scope, key string) (bool, error)
}

// eventSource is the slice of aggregate behavior commit needs.
type eventSource interface {
	Uncommitted() []shared.Event
	LoadedVersion() int
	ClearUncommitted()
}

// commit seals, appends and publishes an aggregate's raised events, then
// clears its buffer. Publishing happens only after the append succeeded, so
// subscribers never see an event the store rejected. seal may be nil for
// streams without personal fields.
func commit(ctx context.Context, store shared.EventStore, publisher shared.EventPublisher, streamID string, src eventSource, seal shared.SealFn) (int, error) {
	events := src.Uncommitted()
	if len(events) == 0 {
		return src.LoadedVersion(), nil
	}

	if seal != nil {
		if err := sealAll(events, seal); err != nil {
			return 0, err
		}
	}

	version, err := store.Append(ctx, streamID, events, src.LoadedVersion())
	if err != nil {
		return 0, err
	}

	if publisher != nil {
		for _, event := range events {
			_ = publisher.Publish(event)
		}
	}

	src.ClearUncommitted()
	return version, nil
}

// sealAll seals the personal fields of every event that carries any.
func sealAll(events []shared.Event, seal shared.SealFn) error {
	for _, event := range events {
		sensitive, ok := event.(shared.Sensitive)
		if !ok {
			continue
		}
		if err := sensitive.SealPII(seal); err != nil {
			return err
		}
	}
	return nil
}

// openAll opens the personal fields of every event that carries any.
func openAll(events []shared.Event, open shared.OpenFn) error {
	for _, event := range events {
		sensitive, ok := event.(shared.Sensitive)
		if !ok {
			continue
		}
		if err := sensitive.OpenPII(open); err != nil {
			return err
		}
	}
	return nil
}

// decodeAll turns a stored stream back into typed domain events.
func decodeAll(stream *shared.Stream) ([]shared.Event, error) {
	events := make([]shared.Event, 0, stream.Len())
	for {
		record, ok := stream.Next()
		if !ok {
			break
		}
		event, err := shared.Decode(*record)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// loadEnvelope rehydrates an envelope from its full stream. Sealed fields
// are opened with the owning account's key; after key destruction they come
// back redacted rather than failing the fold.
func loadEnvelope(ctx context.Context, store shared.EventStore, keys *crypto.KeyCache, id shared.EnvelopeID) (*envelope.Envelope, error) {
	stream, err := store.Load(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return foldEnvelope(ctx, stream, keys)
}

// loadEnvelopeAsOf rehydrates the envelope as it stood at the given instant.
func loadEnvelopeAsOf(ctx context.Context, store shared.EventStore, keys *crypto.KeyCache, id shared.EnvelopeID, asOf time.Time) (*envelope.Envelope, error) {
	stream, err := store.LoadAsOf(ctx, id.String(), asOf)
	if err != nil {
		return nil, err
	}
	return foldEnvelope(ctx, stream, keys)
}

func foldEnvelope(ctx context.Context, stream *shared.Stream, keys *crypto.KeyCache) (*envelope.Envelope, error) {
	events, err := decodeAll(stream)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, shared.NewDomainError("command", "foldEnvelope", shared.ErrStreamNotFound, "empty envelope stream")
	}

	// The creation event's user is the owner; that key opens the whole
	// stream regardless of who is acting now.
	if err := openAll(events, keys.OpenerFor(ctx, events[0].UserID())); err != nil {
		return nil, err
	}
	return envelope.FromEvents(events)
}

// loadAccount rehydrates an account from its stream.
func loadAccount(ctx context.Context, store shared.EventStore, keys *crypto.KeyCache, id shared.AccountID) (*account.Account, error) {
	stream, err := store.Load(ctx, id.String())
	if err != nil {
		return nil, err
	}

	events, err := decodeAll(stream)
	if err != nil {
		return nil, err
	}
	if err := openAll(events, keys.OpenerFor(ctx, id.String())); err != nil {
		return nil, err
	}
	return account.FromEvents(events)
}

// loadRegistry rehydrates a uniqueness registry. A missing stream is not an
// error: the registry bootstraps empty and the first Register creates it.
func loadRegistry(ctx context.Context, store shared.EventStore, streamID string) (*registry.Registry, error) {
	stream, err := store.Load(ctx, streamID)
	if err != nil {
		if errors.Is(err, shared.ErrStreamNotFound) {
			return registry.New(streamID), nil
		}
		return nil, err
	}

	events, err := decodeAll(stream)
	if err != nil {
		return nil, err
	}
	return registry.FromEvents(streamID, events)
}

// claimName registers a name key for a holder and commits the registry
// stream. The claim is committed before the envelope append it protects: a
// conflicting envelope append then leaves the name over-held, never freed
// while an envelope still folds to it. A key this holder already holds is
// treated as claimed, so a retry after a failed envelope append can pass.
func claimName(ctx context.Context, store shared.EventStore, publisher shared.EventPublisher, names *registry.Registry, key, holderID string, requestID shared.RequestID, now time.Time) error {
	if holder, taken := names.OwnerOf(key); taken && holder == holderID {
		return nil
	}
	if err := names.Register(key, holderID, requestID, now); err != nil {
		return err
	}
	_, err := commit(ctx, store, publisher, names.StreamID(), names, nil)
	return err
}

// releaseName releases a name key and commits the registry stream. Callers
// release only after the envelope append succeeded.
func releaseName(ctx context.Context, store shared.EventStore, publisher shared.EventPublisher, names *registry.Registry, key, holderID string, requestID shared.RequestID, now time.Time) error {
	if err := names.Release(key, holderID, requestID, now); err != nil {
		return err
	}
	_, err := commit(ctx, store, publisher, names.StreamID(), names, nil)
	return err
}

// nameKey digests a normalized envelope name into its registry key. The
// registry stream stores only the digest, so erasing a user never leaves
// plaintext names behind in registry history.
func nameKey(name shared.EnvelopeName) string {
	sum := sha256.Sum256([]byte(name.Normalized()))
	return hex.EncodeToString(sum[:])
}
