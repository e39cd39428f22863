package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/envelope"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE ENVELOPE COMMAND
// Creates a budget envelope after claiming its name in the owner's name
// registry. The name cache is consulted first as a cheap pre-check; only
// the registry fold decides.
// ══════════════════════════════════════════════════════════════════════════════

// CreateEnvelopeCommand contains the data to create an envelope.
type CreateEnvelopeCommand struct {
	// OwnerID is the account creating the envelope.
	OwnerID string

	// Name is the envelope name, unique per owner among live envelopes.
	Name string

	// TargetedAmount is the savings target as a decimal string ("250.00").
	TargetedAmount string

	// Currency is the three-letter currency code; empty means the default.
	Currency string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c CreateEnvelopeCommand) Validate() error {
	if !shared.AccountID(c.OwnerID).IsValid() {
		return shared.NewDomainError("command", "CreateEnvelope", shared.ErrInvalidID, "owner_id must be a valid UUID")
	}
	if _, err := shared.NewEnvelopeName(c.Name); err != nil {
		return err
	}
	if _, err := shared.ParseMoney(c.TargetedAmount); err != nil {
		return err
	}
	if _, err := shared.NewCurrency(c.Currency); err != nil {
		return err
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "CreateEnvelope", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// CreateEnvelopeResult contains the result of creating an envelope.
type CreateEnvelopeResult struct {
	// EnvelopeID is the ID of the created envelope.
	EnvelopeID string

	// Version is the envelope stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event

	// CreatedAt is when the envelope was created.
	CreatedAt time.Time
}

// CreateEnvelopeHandler handles the CreateEnvelopeCommand.
type CreateEnvelopeHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	names     NameChecker
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewCreateEnvelopeHandler creates a new CreateEnvelopeHandler. names may
// be nil; the handler then goes straight to the registry.
func NewCreateEnvelopeHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, names NameChecker, clock timeutil.Clock, logger *slog.Logger) *CreateEnvelopeHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateEnvelopeHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		names:     names,
		clock:     clock,
		logger:    logger,
	}
}

// Handle executes the create envelope command.
func (h *CreateEnvelopeHandler) Handle(ctx context.Context, cmd CreateEnvelopeCommand) (*CreateEnvelopeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	requestID := shared.RequestID(cmd.RequestID)
	owner := shared.AccountID(cmd.OwnerID)
	name, _ := shared.NewEnvelopeName(cmd.Name)
	target, _ := shared.ParseMoney(cmd.TargetedAmount)
	currency, _ := shared.NewCurrency(cmd.Currency)

	scope := registry.NamesStreamID(owner)
	key := nameKey(name)

	// Best-effort pre-check against the name cache. Errors and staleness
	// are tolerated; the registry append below is what actually decides.
	if h.names != nil {
		taken, err := h.names.IsTaken(ctx, scope, key)
		if err != nil {
			h.logger.Debug("name cache check failed", "scope", scope, "error", err)
		} else if taken {
			return nil, shared.NewDomainError("command", "CreateEnvelope", shared.ErrUniquenessConflict,
				fmt.Sprintf("envelope name %q is already in use", name))
		}
	}

	envelopeID := shared.EnvelopeID(uuid.NewString())

	names, err := loadRegistry(ctx, h.store, scope)
	if err != nil {
		return nil, err
	}
	if err := names.Register(key, envelopeID.String(), requestID, now); err != nil {
		return nil, err
	}
	if _, err := commit(ctx, h.store, h.publisher, scope, names, nil); err != nil {
		return nil, err
	}

	env, err := envelope.New(envelopeID, owner, name, target, currency, requestID, now)
	if err != nil {
		return nil, err
	}

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	events := env.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, envelopeID.String(), env, keys.SealerFor(ctx, owner.String()))
	if err != nil {
		return nil, err
	}

	return &CreateEnvelopeResult{
		EnvelopeID: envelopeID.String(),
		Version:    version,
		Events:     events,
		CreatedAt:  now,
	}, nil
}
