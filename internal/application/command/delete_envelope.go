package command

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE ENVELOPE COMMAND
// Deletion closes the envelope and frees its name for reuse; the event
// stream itself is never removed.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteEnvelopeCommand deletes an envelope.
type DeleteEnvelopeCommand struct {
	// EnvelopeID is the envelope to delete.
	EnvelopeID string

	// ActorID is the account issuing the command; must be the owner.
	ActorID string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c DeleteEnvelopeCommand) Validate() error {
	if !shared.EnvelopeID(c.EnvelopeID).IsValid() {
		return shared.NewDomainError("command", "DeleteEnvelope", shared.ErrInvalidID, "envelope_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "DeleteEnvelope", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "DeleteEnvelope", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// DeleteEnvelopeResult contains the result of deleting an envelope.
type DeleteEnvelopeResult struct {
	// Version is the envelope stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// DeleteEnvelopeHandler handles the DeleteEnvelopeCommand.
type DeleteEnvelopeHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewDeleteEnvelopeHandler creates a new DeleteEnvelopeHandler.
func NewDeleteEnvelopeHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *DeleteEnvelopeHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &DeleteEnvelopeHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the delete envelope command.
func (h *DeleteEnvelopeHandler) Handle(ctx context.Context, cmd DeleteEnvelopeCommand) (*DeleteEnvelopeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	requestID := shared.RequestID(cmd.RequestID)
	envelopeID := shared.EnvelopeID(cmd.EnvelopeID)

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	env, err := loadEnvelope(ctx, h.store, keys, envelopeID)
	if err != nil {
		return nil, err
	}
	key := nameKey(env.Name())

	if err := env.Delete(shared.AccountID(cmd.ActorID), requestID, now); err != nil {
		return nil, err
	}

	scope := registry.NamesStreamID(env.Owner())
	names, err := loadRegistry(ctx, h.store, scope)
	if err != nil {
		return nil, err
	}

	// The name is released only after the tombstone commits. Releasing
	// first would free the name for reuse while a conflicting append
	// leaves the envelope alive and still folding to it.
	events := env.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, envelopeID.String(), env, keys.SealerFor(ctx, env.Owner().String()))
	if err != nil {
		return nil, err
	}

	if err := releaseName(ctx, h.store, h.publisher, names, key, envelopeID.String(), requestID, now); err != nil {
		return nil, err
	}

	return &DeleteEnvelopeResult{
		Version: version,
		Events:  events,
	}, nil
}
