// Package registry contains the uniqueness registry aggregate. Event
// streams are isolated from each other, so a rule like "no two active
// envelopes share a name for one user" cannot be enforced inside a single
// envelope stream. Each uniqueness scope gets its own registry stream of
// registered/released events whose fold is the authoritative answer.
package registry

import (
	"fmt"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Stream id conventions for the two scopes in use.
const (
	// EmailStreamID is the single global registry of account email keys.
	EmailStreamID = "registry:emails"

	// namesStreamPrefix scopes envelope names per owning account.
	namesStreamPrefix = "registry:names:"
)

// NamesStreamID returns the per-account envelope-name registry stream.
func NamesStreamID(owner shared.AccountID) string {
	return namesStreamPrefix + owner.String()
}

// Registry maps normalized keys to the aggregate that owns them. It is
// created lazily on first register and never deleted.
type Registry struct {
	streamID string
	mapping  map[string]string // normalized key -> owner aggregate id

	recorder shared.Recorder
}

// New returns an empty registry for the given scope stream. Loading a
// missing registry stream is not an error: the first Register bootstraps it.
func New(streamID string) *Registry {
	return &Registry{
		streamID: streamID,
		mapping:  make(map[string]string),
	}
}

// FromEvents rehydrates a registry by folding its event sequence.
func FromEvents(streamID string, events []shared.Event) (*Registry, error) {
	r := New(streamID)
	for _, event := range events {
		if event.AggregateID() != streamID {
			return nil, shared.NewDomainError("registry", "FromEvents", shared.ErrCorruptStream,
				fmt.Sprintf("event for stream %q folded into registry %q", event.AggregateID(), streamID))
		}
		r.apply(event)
		r.recorder.Applied()
	}
	return r, nil
}

// Register claims a key for an owner. It fails with ErrUniquenessConflict
// when any owner, including the same one, currently holds the key.
func (r *Registry) Register(key, ownerID string, requestID shared.RequestID, now time.Time) error {
	if key == "" {
		return shared.NewDomainError("registry", "Register", shared.ErrEmptyValue, "registry key cannot be empty")
	}
	if holder, taken := r.mapping[key]; taken {
		return shared.NewDomainError("registry", "Register", shared.ErrUniquenessConflict,
			fmt.Sprintf("key %q already held by %s", key, holder))
	}

	r.raise(NewRegisteredEvent(r.streamID, key, ownerID, requestID, now))
	return nil
}

// Release frees a key for reuse. Only the current holder may release it;
// releasing an absent key is an invalid operation.
func (r *Registry) Release(key, ownerID string, requestID shared.RequestID, now time.Time) error {
	holder, taken := r.mapping[key]
	if !taken {
		return shared.NewDomainError("registry", "Release", shared.ErrInvalidOperation,
			fmt.Sprintf("key %q is not registered", key))
	}
	if holder != ownerID {
		return shared.NewDomainError("registry", "Release", shared.ErrOwnershipViolation,
			fmt.Sprintf("key %q is held by %s, not %s", key, holder, ownerID))
	}

	r.raise(NewReleasedEvent(r.streamID, key, ownerID, requestID, now))
	return nil
}

// IsRegistered reports whether any owner holds the key.
func (r *Registry) IsRegistered(key string) bool {
	_, taken := r.mapping[key]
	return taken
}

// OwnerOf returns the aggregate currently holding the key.
func (r *Registry) OwnerOf(key string) (string, bool) {
	owner, taken := r.mapping[key]
	return owner, taken
}

// StreamID returns the registry's scope stream.
func (r *Registry) StreamID() string { return r.streamID }

// Version returns the fold count.
func (r *Registry) Version() int { return r.recorder.Version() }

// LoadedVersion returns the stream version at load time.
func (r *Registry) LoadedVersion() int { return r.recorder.LoadedVersion() }

// Uncommitted returns raised events not yet persisted.
func (r *Registry) Uncommitted() []shared.Event { return r.recorder.Uncommitted() }

// ClearUncommitted drops the raised-events buffer after a successful append.
func (r *Registry) ClearUncommitted() { r.recorder.Clear() }

func (r *Registry) raise(event shared.Event) {
	r.apply(event)
	r.recorder.Record(event)
}

func (r *Registry) apply(event shared.Event) {
	switch ev := event.(type) {
	case *RegisteredEvent:
		r.mapping[ev.Key] = ev.OwnerID
	case *ReleasedEvent:
		delete(r.mapping, ev.Key)
	default:
		panic(fmt.Sprintf("registry: unknown event type %T", event))
	}
}
