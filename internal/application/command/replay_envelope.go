package command

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPLAY ENVELOPE COMMAND
// Re-asserts the envelope's current state as a fresh event so downstream
// read models resynchronize. No business fact changes.
// ══════════════════════════════════════════════════════════════════════════════

// ReplayEnvelopeCommand replays an envelope's current state.
type ReplayEnvelopeCommand struct {
	// EnvelopeID is the envelope to replay.
	EnvelopeID string

	// ActorID is the account issuing the command; must be the owner.
	ActorID string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c ReplayEnvelopeCommand) Validate() error {
	if !shared.EnvelopeID(c.EnvelopeID).IsValid() {
		return shared.NewDomainError("command", "ReplayEnvelope", shared.ErrInvalidID, "envelope_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "ReplayEnvelope", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "ReplayEnvelope", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// ReplayEnvelopeResult contains the result of replaying an envelope.
type ReplayEnvelopeResult struct {
	// Version is the envelope stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// ReplayEnvelopeHandler handles the ReplayEnvelopeCommand.
type ReplayEnvelopeHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewReplayEnvelopeHandler creates a new ReplayEnvelopeHandler.
func NewReplayEnvelopeHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *ReplayEnvelopeHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ReplayEnvelopeHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the replay envelope command.
func (h *ReplayEnvelopeHandler) Handle(ctx context.Context, cmd ReplayEnvelopeCommand) (*ReplayEnvelopeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	envelopeID := shared.EnvelopeID(cmd.EnvelopeID)

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	env, err := loadEnvelope(ctx, h.store, keys, envelopeID)
	if err != nil {
		return nil, err
	}

	if err := env.Replay(shared.AccountID(cmd.ActorID), shared.RequestID(cmd.RequestID), now); err != nil {
		return nil, err
	}

	events := env.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, envelopeID.String(), env, keys.SealerFor(ctx, env.Owner().String()))
	if err != nil {
		return nil, err
	}

	return &ReplayEnvelopeResult{
		Version: version,
		Events:  events,
	}, nil
}
