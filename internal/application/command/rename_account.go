package command

import (
	"context"
	"strings"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RENAME ACCOUNT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RenameAccountCommand changes an account's display name.
type RenameAccountCommand struct {
	// AccountID is the account to rename.
	AccountID string

	// ActorID is the account issuing the command; must equal AccountID.
	ActorID string

	// DisplayName is the new display name.
	DisplayName string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c RenameAccountCommand) Validate() error {
	if !shared.AccountID(c.AccountID).IsValid() {
		return shared.NewDomainError("command", "RenameAccount", shared.ErrInvalidID, "account_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "RenameAccount", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		return shared.NewDomainError("command", "RenameAccount", shared.ErrEmptyValue, "display_name is required")
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "RenameAccount", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// RenameAccountResult contains the result of renaming an account.
type RenameAccountResult struct {
	// Version is the account stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// RenameAccountHandler handles the RenameAccountCommand.
type RenameAccountHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewRenameAccountHandler creates a new RenameAccountHandler.
func NewRenameAccountHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *RenameAccountHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RenameAccountHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the rename account command.
func (h *RenameAccountHandler) Handle(ctx context.Context, cmd RenameAccountCommand) (*RenameAccountResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	accountID := shared.AccountID(cmd.AccountID)

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	acct, err := loadAccount(ctx, h.store, keys, accountID)
	if err != nil {
		return nil, err
	}

	if err := acct.Rename(shared.AccountID(cmd.ActorID), strings.TrimSpace(cmd.DisplayName), shared.RequestID(cmd.RequestID), now); err != nil {
		return nil, err
	}

	events := acct.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, accountID.String(), acct, keys.SealerFor(ctx, accountID.String()))
	if err != nil {
		return nil, err
	}

	return &RenameAccountResult{
		Version: version,
		Events:  events,
	}, nil
}
