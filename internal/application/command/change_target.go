package command

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE TARGET COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ChangeTargetCommand changes an envelope's targeted amount.
type ChangeTargetCommand struct {
	// EnvelopeID is the envelope whose target changes.
	EnvelopeID string

	// ActorID is the account issuing the command; must be the owner.
	ActorID string

	// TargetedAmount is the new target as a decimal string.
	TargetedAmount string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c ChangeTargetCommand) Validate() error {
	if !shared.EnvelopeID(c.EnvelopeID).IsValid() {
		return shared.NewDomainError("command", "ChangeTarget", shared.ErrInvalidID, "envelope_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "ChangeTarget", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if _, err := shared.ParseMoney(c.TargetedAmount); err != nil {
		return err
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "ChangeTarget", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// ChangeTargetResult contains the result of changing the target.
type ChangeTargetResult struct {
	// Version is the envelope stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// ChangeTargetHandler handles the ChangeTargetCommand.
type ChangeTargetHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewChangeTargetHandler creates a new ChangeTargetHandler.
func NewChangeTargetHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *ChangeTargetHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ChangeTargetHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the change target command.
func (h *ChangeTargetHandler) Handle(ctx context.Context, cmd ChangeTargetCommand) (*ChangeTargetResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	envelopeID := shared.EnvelopeID(cmd.EnvelopeID)
	target, _ := shared.ParseMoney(cmd.TargetedAmount)

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	env, err := loadEnvelope(ctx, h.store, keys, envelopeID)
	if err != nil {
		return nil, err
	}

	if err := env.ChangeTarget(shared.AccountID(cmd.ActorID), target, shared.RequestID(cmd.RequestID), now); err != nil {
		return nil, err
	}

	events := env.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, envelopeID.String(), env, keys.SealerFor(ctx, env.Owner().String()))
	if err != nil {
		return nil, err
	}

	return &ChangeTargetResult{
		Version: version,
		Events:  events,
	}, nil
}
