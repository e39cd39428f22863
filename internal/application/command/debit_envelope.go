package command

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEBIT ENVELOPE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DebitEnvelopeCommand removes money from an envelope.
type DebitEnvelopeCommand struct {
	// EnvelopeID is the envelope to debit.
	EnvelopeID string

	// ActorID is the account issuing the command; must be the owner.
	ActorID string

	// Amount is the amount to remove as a decimal string ("120.50").
	Amount string

	// Reason is an optional free-form note on the spend.
	Reason string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c DebitEnvelopeCommand) Validate() error {
	if !shared.EnvelopeID(c.EnvelopeID).IsValid() {
		return shared.NewDomainError("command", "DebitEnvelope", shared.ErrInvalidID, "envelope_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "DebitEnvelope", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if _, err := shared.ParseMoney(c.Amount); err != nil {
		return err
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "DebitEnvelope", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// DebitEnvelopeResult contains the result of debiting an envelope.
type DebitEnvelopeResult struct {
	// NewBalance is the balance after the debit, as a decimal string.
	NewBalance string

	// Version is the envelope stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// DebitEnvelopeHandler handles the DebitEnvelopeCommand.
type DebitEnvelopeHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewDebitEnvelopeHandler creates a new DebitEnvelopeHandler.
func NewDebitEnvelopeHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *DebitEnvelopeHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &DebitEnvelopeHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the debit envelope command.
func (h *DebitEnvelopeHandler) Handle(ctx context.Context, cmd DebitEnvelopeCommand) (*DebitEnvelopeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	envelopeID := shared.EnvelopeID(cmd.EnvelopeID)
	amount, _ := shared.ParseMoney(cmd.Amount)

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	env, err := loadEnvelope(ctx, h.store, keys, envelopeID)
	if err != nil {
		return nil, err
	}

	if err := env.Debit(shared.AccountID(cmd.ActorID), amount, cmd.Reason, shared.RequestID(cmd.RequestID), now); err != nil {
		return nil, err
	}

	events := env.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, envelopeID.String(), env, keys.SealerFor(ctx, env.Owner().String()))
	if err != nil {
		return nil, err
	}

	return &DebitEnvelopeResult{
		NewBalance: env.CurrentAmount().String(),
		Version:    version,
		Events:     events,
	}, nil
}
