package command

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RENAME ENVELOPE COMMAND
// The new name is claimed before the old one is released, so renaming to a
// name that is still held anywhere, including the envelope's own current
// name, fails with a uniqueness conflict.
// ══════════════════════════════════════════════════════════════════════════════

// RenameEnvelopeCommand renames an envelope.
type RenameEnvelopeCommand struct {
	// EnvelopeID is the envelope to rename.
	EnvelopeID string

	// ActorID is the account issuing the command; must be the owner.
	ActorID string

	// Name is the new envelope name.
	Name string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c RenameEnvelopeCommand) Validate() error {
	if !shared.EnvelopeID(c.EnvelopeID).IsValid() {
		return shared.NewDomainError("command", "RenameEnvelope", shared.ErrInvalidID, "envelope_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "RenameEnvelope", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if _, err := shared.NewEnvelopeName(c.Name); err != nil {
		return err
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "RenameEnvelope", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// RenameEnvelopeResult contains the result of renaming an envelope.
type RenameEnvelopeResult struct {
	// Version is the envelope stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// RenameEnvelopeHandler handles the RenameEnvelopeCommand.
type RenameEnvelopeHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewRenameEnvelopeHandler creates a new RenameEnvelopeHandler.
func NewRenameEnvelopeHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *RenameEnvelopeHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RenameEnvelopeHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the rename envelope command.
func (h *RenameEnvelopeHandler) Handle(ctx context.Context, cmd RenameEnvelopeCommand) (*RenameEnvelopeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	requestID := shared.RequestID(cmd.RequestID)
	envelopeID := shared.EnvelopeID(cmd.EnvelopeID)
	newName, _ := shared.NewEnvelopeName(cmd.Name)

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	env, err := loadEnvelope(ctx, h.store, keys, envelopeID)
	if err != nil {
		return nil, err
	}
	oldKey := nameKey(env.Name())
	newKey := nameKey(newName)
	if newKey == oldKey {
		return nil, shared.NewDomainError("command", "RenameEnvelope", shared.ErrUniquenessConflict,
			"envelope already holds this name")
	}

	if err := env.Rename(shared.AccountID(cmd.ActorID), newName, requestID, now); err != nil {
		return nil, err
	}

	// Claim the new name before the envelope append, release the old one
	// only after it. A conflicting append then leaves both names held for
	// a retry to resolve, never the old name freed while the envelope
	// still folds to it.
	scope := registry.NamesStreamID(env.Owner())
	names, err := loadRegistry(ctx, h.store, scope)
	if err != nil {
		return nil, err
	}
	if err := claimName(ctx, h.store, h.publisher, names, newKey, envelopeID.String(), requestID, now); err != nil {
		return nil, err
	}

	events := env.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, envelopeID.String(), env, keys.SealerFor(ctx, env.Owner().String()))
	if err != nil {
		return nil, err
	}

	if err := releaseName(ctx, h.store, h.publisher, names, oldKey, envelopeID.String(), requestID, now); err != nil {
		return nil, err
	}

	return &RenameEnvelopeResult{
		Version: version,
		Events:  events,
	}, nil
}
