package command

import (
	"context"
	"errors"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWIND ENVELOPE COMMAND
// Folds the stream as of a past instant and re-asserts that state as a new
// event on top of the full history. Nothing is truncated: the rewind itself
// is one more fact in the log.
// ══════════════════════════════════════════════════════════════════════════════

// RewindEnvelopeCommand rewinds an envelope to a past point in time.
type RewindEnvelopeCommand struct {
	// EnvelopeID is the envelope to rewind.
	EnvelopeID string

	// ActorID is the account issuing the command; must be the owner.
	ActorID string

	// RewindTo is the instant whose reconstructed state becomes current.
	RewindTo time.Time

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c RewindEnvelopeCommand) Validate() error {
	if !shared.EnvelopeID(c.EnvelopeID).IsValid() {
		return shared.NewDomainError("command", "RewindEnvelope", shared.ErrInvalidID, "envelope_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "RewindEnvelope", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if c.RewindTo.IsZero() {
		return shared.NewDomainError("command", "RewindEnvelope", shared.ErrEmptyValue, "rewind_to is required")
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "RewindEnvelope", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// RewindEnvelopeResult contains the result of rewinding an envelope.
type RewindEnvelopeResult struct {
	// Balance is the balance after the rewind, as a decimal string.
	Balance string

	// Version is the envelope stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// RewindEnvelopeHandler handles the RewindEnvelopeCommand.
type RewindEnvelopeHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewRewindEnvelopeHandler creates a new RewindEnvelopeHandler.
func NewRewindEnvelopeHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *RewindEnvelopeHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RewindEnvelopeHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the rewind envelope command.
func (h *RewindEnvelopeHandler) Handle(ctx context.Context, cmd RewindEnvelopeCommand) (*RewindEnvelopeResult, error) {
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
	currentKey := nameKey(env.Name())

	past, err := loadEnvelopeAsOf(ctx, h.store, keys, envelopeID, cmd.RewindTo)
	if err != nil {
		if errors.Is(err, shared.ErrStreamNotFound) {
			return nil, shared.NewDomainError("command", "RewindEnvelope", shared.ErrInvalidOperation,
				"no history at or before the rewind point")
		}
		return nil, err
	}
	snapshot := past.SnapshotState()

	if err := env.Rewind(shared.AccountID(cmd.ActorID), snapshot, cmd.RewindTo, requestID, now); err != nil {
		return nil, err
	}

	// A rewind can resurrect an older name; the registry has to follow.
	// If another envelope claimed that name meanwhile, the rewind fails
	// with a uniqueness conflict before anything is appended. The claim
	// commits before the envelope append and the current name is released
	// only after it, so a conflicting append leaves both names held
	// rather than the current one freed while the envelope keeps it.
	pastKey := nameKey(past.Name())
	var names *registry.Registry
	if pastKey != currentKey {
		scope := registry.NamesStreamID(env.Owner())
		names, err = loadRegistry(ctx, h.store, scope)
		if err != nil {
			return nil, err
		}
		if err := claimName(ctx, h.store, h.publisher, names, pastKey, envelopeID.String(), requestID, now); err != nil {
			return nil, err
		}
	}

	events := env.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, envelopeID.String(), env, keys.SealerFor(ctx, env.Owner().String()))
	if err != nil {
		return nil, err
	}

	if names != nil {
		if err := releaseName(ctx, h.store, h.publisher, names, currentKey, envelopeID.String(), requestID, now); err != nil {
			return nil, err
		}
	}

	return &RewindEnvelopeResult{
		Balance: env.CurrentAmount().String(),
		Version: version,
		Events:  events,
	}, nil
}
