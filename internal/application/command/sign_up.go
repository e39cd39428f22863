package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/account"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGN UP COMMAND
// Creates a user account, its encryption key, and the global email claim.
// ══════════════════════════════════════════════════════════════════════════════

const minPasswordLength = 8

// SignUpCommand contains the data to create an account.
type SignUpCommand struct {
	// Email is the sign-in address; it must be globally unique.
	Email string

	// DisplayName is the user-facing name.
	DisplayName string

	// Password is the plaintext password; only its hash is ever stored.
	Password string

	// Language is the preferred language code (defaults to "en").
	Language string

	// RequestID correlates the command with the events it produces.
	RequestID string
}

// Validate validates the command.
func (c SignUpCommand) Validate() error {
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return shared.NewDomainError("command", "SignUp", shared.ErrEmptyValue, "email is required")
	}
	if !strings.Contains(email, "@") {
		return shared.NewDomainError("command", "SignUp", shared.ErrInvalidInput, "email must contain @")
	}
	if len(c.Password) < minPasswordLength {
		return shared.NewDomainError("command", "SignUp", shared.ErrInvalidInput,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if !shared.RequestID(c.RequestID).IsValid() {
		return shared.NewDomainError("command", "SignUp", shared.ErrInvalidID, "request_id must be a valid UUID")
	}
	return nil
}

// SignUpResult contains the result of creating an account.
type SignUpResult struct {
	// AccountID is the ID of the created account.
	AccountID string

	// Version is the account stream version after the append.
	Version int

	// Events contains the domain events appended by this command.
	Events []shared.Event

	// CreatedAt is when the account was created.
	CreatedAt time.Time
}

// SignUpHandler handles the SignUpCommand.
type SignUpHandler struct {
	store     shared.EventStore
	publisher shared.EventPublisher
	keyRepo   crypto.KeyRepository
	clock     timeutil.Clock
}

// NewSignUpHandler creates a new SignUpHandler.
func NewSignUpHandler(store shared.EventStore, publisher shared.EventPublisher, keyRepo crypto.KeyRepository, clock timeutil.Clock) *SignUpHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SignUpHandler{
		store:     store,
		publisher: publisher,
		keyRepo:   keyRepo,
		clock:     clock,
	}
}

// Handle executes the sign up command.
func (h *SignUpHandler) Handle(ctx context.Context, cmd SignUpCommand) (*SignUpResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	requestID := shared.RequestID(cmd.RequestID)
	accountID := shared.AccountID(uuid.NewString())
	email := strings.TrimSpace(cmd.Email)

	// Claim the email in the global registry first. The registry stream
	// holds only the digest; a conflict here means the address is taken.
	emails, err := loadRegistry(ctx, h.store, registry.EmailStreamID)
	if err != nil {
		return nil, err
	}
	if err := emails.Register(account.EmailKey(email), accountID.String(), requestID, now); err != nil {
		return nil, err
	}
	if _, err := commit(ctx, h.store, h.publisher, registry.EmailStreamID, emails, nil); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.WrapError("command", "SignUp", shared.ErrInvalidInput, "hash password", err)
	}

	// The key must exist before the first sealed event is appended.
	if _, err := h.keyRepo.Create(ctx, accountID.String()); err != nil {
		return nil, err
	}

	acct, err := account.SignUp(accountID, email, strings.TrimSpace(cmd.DisplayName), string(hash), cmd.Language, requestID, now)
	if err != nil {
		return nil, err
	}

	keys := crypto.NewKeyCache(h.keyRepo)
	defer keys.Clear()

	events := acct.Uncommitted()
	version, err := commit(ctx, h.store, h.publisher, accountID.String(), acct, keys.SealerFor(ctx, accountID.String()))
	if err != nil {
		return nil, err
	}

	return &SignUpResult{
		AccountID: accountID.String(),
		Version:   version,
		Events:    events,
		CreatedAt: now,
	}, nil
}
