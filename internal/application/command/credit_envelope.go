package command

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREDIT ENVELOPE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreditEnvelopeCommand adds money to an envelope.
type CreditEnvelopeCommand struct {
	// EnvelopeID is the envelope to credit.
	EnvelopeID string

	// ActorID is the account issuing the command; must be the owner.
	ActorID string

	// Amount is the amount to add as a decimal string ("500.00").
	Amount string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c CreditEnvelopeCommand) Validate() error {
	if !shared.EnvelopeID(c.EnvelopeID).IsValid() {
		return shared.NewDomainError("command", "CreditEnvelope", shared.ErrInvalidID, "envelope_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "CreditEnvelope", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if _, err := shared.ParseMoney(c.Amount); err != nil {
		return err
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "CreditEnvelope", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// CreditEnvelopeResult contains the result of crediting an envelope.
type CreditEnvelopeResult struct {
	// NewBalance is the balance after the credit, as a decimal string.
	NewBalance string

	// Version is the envelope stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// CreditEnvelopeHandler handles the CreditEnvelopeCommand.
type CreditEnvelopeHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewCreditEnvelopeHandler creates a new CreditEnvelopeHandler.
func NewCreditEnvelopeHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *CreditEnvelopeHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &CreditEnvelopeHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the credit envelope command.
func (h *CreditEnvelopeHandler) Handle(ctx context.Context, cmd CreditEnvelopeCommand) (*CreditEnvelopeResult, error) {
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

	if err := env.Credit(shared.AccountID(cmd.ActorID), amount, shared.RequestID(cmd.RequestID), now); err != nil {
		return nil, err
	}

	events := env.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, envelopeID.String(), env, keys.SealerFor(ctx, env.Owner().String()))
	if err != nil {
		return nil, err
	}

	return &CreditEnvelopeResult{
		NewBalance: env.CurrentAmount().String(),
		Version:    version,
		Events:     events,
	}, nil
}
