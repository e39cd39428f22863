package command

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/account"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE ACCOUNT COMMAND
// Marks the account deleted, frees its email, then destroys its encryption
// key. Key destruction is the erasure: every sealed field in the account's
// history becomes permanently unreadable while the log itself stays intact.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteAccountCommand deletes the caller's own account.
type DeleteAccountCommand struct {
	// AccountID is the account to delete.
	AccountID string

	// ActorID is the account issuing the command; must equal AccountID.
	ActorID string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c DeleteAccountCommand) Validate() error {
	if !shared.AccountID(c.AccountID).IsValid() {
		return shared.NewDomainError("command", "DeleteAccount", shared.ErrInvalidID, "account_id must be a valid UUID")
	}
	if !shared.AccountID(c.ActorID).IsValid() {
		return shared.NewDomainError("command", "DeleteAccount", shared.ErrInvalidID, "actor_id must be a valid UUID")
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "DeleteAccount", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// DeleteAccountResult contains the result of deleting an account.
type DeleteAccountResult struct {
	// Version is the account stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event
}

// DeleteAccountHandler handles the DeleteAccountCommand.
type DeleteAccountHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewDeleteAccountHandler creates a new DeleteAccountHandler.
func NewDeleteAccountHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *DeleteAccountHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &DeleteAccountHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the delete account command.
func (h *DeleteAccountHandler) Handle(ctx context.Context, cmd DeleteAccountCommand) (*DeleteAccountResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	requestID := shared.RequestID(cmd.RequestID)
	accountID := shared.AccountID(cmd.AccountID)

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	// The key still exists at this point, so the email opens to plaintext
	// and its registry digest can be recomputed for the release.
	acct, err := loadAccount(ctx, h.store, keys, accountID)
	if err != nil {
		return nil, err
	}
	email := acct.Email()

	if err := acct.Delete(shared.AccountID(cmd.ActorID), requestID, now); err != nil {
		return nil, err
	}

	emails, err := loadRegistry(ctx, h.store, registry.EmailStreamID)
	if err != nil {
		return nil, err
	}
	if err := emails.Release(account.EmailKey(email), accountID.String(), requestID, now); err != nil {
		return nil, err
	}
	if _, err := commit(ctx, h.store, h.publisher, registry.EmailStreamID, emails, nil); err != nil {
		return nil, err
	}

	events := acct.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, accountID.String(), acct, keys.SealerFor(ctx, accountID.String()))
	if err != nil {
		return nil, err
	}

	// Destroying the key comes last: it must not happen unless the deleted
	// event is durably part of the stream.
	if err := h.keyRepo.Destroy(ctx, accountID.String()); err != nil {
		return nil, err
	}

	return &DeleteAccountResult{
		Version: version,
		Events:  events,
	}, nil
}
