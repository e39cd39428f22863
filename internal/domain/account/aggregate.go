// Package account contains the user account aggregate. Like every
// aggregate here, its state is a pure fold of apply over its event stream.
package account

import (
	"fmt"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Account represents a signed-up user.
type Account struct {
	id           shared.AccountID
	email        string
	displayName  string
	passwordHash string
	language     string
	deleted      bool
	createdAt    time.Time
	updatedAt    time.Time

	recorder shared.Recorder
}

// SignUp constructs a new account by raising its creation event. Email
// uniqueness is the global email registry's job, checked by the command
// handler before this constructor; the password arrives already hashed.
func SignUp(id shared.AccountID, email, displayName, passwordHash, language string, requestID shared.RequestID, now time.Time) (*Account, error) {
	if id.IsEmpty() || !id.IsValid() {
		return nil, shared.NewDomainError("account", "SignUp", shared.ErrInvalidID, "invalid account ID")
	}
	if email == "" {
		return nil, shared.NewDomainError("account", "SignUp", shared.ErrEmptyValue, "email cannot be empty")
	}
	if passwordHash == "" {
		return nil, shared.NewDomainError("account", "SignUp", shared.ErrEmptyValue, "password hash cannot be empty")
	}
	if language == "" {
		language = "en"
	}

	a := &Account{}
	a.raise(NewSignedUpEvent(id, email, displayName, passwordHash, language, requestID, now))
	return a, nil
}

// FromEvents rehydrates an account from its decoded event sequence.
func FromEvents(events []shared.Event) (*Account, error) {
	if len(events) == 0 {
		return nil, shared.NewDomainError("account", "FromEvents", shared.ErrStreamNotFound, "empty event sequence")
	}
	if _, ok := events[0].(*SignedUpEvent); !ok {
		return nil, shared.NewDomainError("account", "FromEvents", shared.ErrCorruptStream,
			fmt.Sprintf("first event is %q, not the sign-up event", events[0].EventType()))
	}

	a := &Account{}
	for _, event := range events {
		a.apply(event)
		a.recorder.Applied()
	}
	return a, nil
}

// Rename changes the display name.
func (a *Account) Rename(actor shared.AccountID, displayName string, requestID shared.RequestID, now time.Time) error {
	if err := a.guard(actor, "Rename"); err != nil {
		return err
	}
	if displayName == "" {
		return shared.NewDomainError("account", "Rename", shared.ErrEmptyValue, "display name cannot be empty")
	}

	a.raise(NewRenamedEvent(a.id, displayName, requestID, now))
	return nil
}

// Delete marks the account deleted. Destroying the encryption key, which
// makes the historical sealed fields unreadable, is the command layer's
// follow-up step.
func (a *Account) Delete(actor shared.AccountID, requestID shared.RequestID, now time.Time) error {
	if err := a.guard(actor, "Delete"); err != nil {
		return err
	}

	a.raise(NewDeletedEvent(a.id, requestID, now))
	return nil
}

func (a *Account) guard(actor shared.AccountID, op string) error {
	if actor != a.id {
		return shared.NewDomainError("account", op, shared.ErrOwnershipViolation,
			fmt.Sprintf("account %s cannot act on account %s", actor, a.id))
	}
	if a.deleted {
		return shared.NewDomainError("account", op, shared.ErrInvalidOperation, "account is deleted")
	}
	return nil
}

func (a *Account) raise(event shared.Event) {
	a.apply(event)
	a.recorder.Record(event)
}

func (a *Account) apply(event shared.Event) {
	switch ev := event.(type) {
	case *SignedUpEvent:
		a.id = shared.AccountID(ev.AggregateId)
		a.email = ev.Email
		a.displayName = ev.DisplayName
		a.passwordHash = ev.PasswordHash
		a.language = ev.Language
		a.createdAt = ev.Timestamp
		a.updatedAt = ev.Timestamp

	case *RenamedEvent:
		a.displayName = ev.DisplayName
		a.updatedAt = ev.Timestamp

	case *DeletedEvent:
		a.deleted = true
		a.updatedAt = ev.Timestamp

	default:
		panic(fmt.Sprintf("account: unknown event type %T", event))
	}
}

// ID returns the account's identity.
func (a *Account) ID() shared.AccountID { return a.id }

// Email returns the account's email; "[erased]" after key destruction.
func (a *Account) Email() string { return a.email }

// DisplayName returns the display name.
func (a *Account) DisplayName() string { return a.displayName }

// PasswordHash returns the bcrypt password hash.
func (a *Account) PasswordHash() string { return a.passwordHash }

// Language returns the preferred language.
func (a *Account) Language() string { return a.language }

// IsDeleted reports whether the account is deleted.
func (a *Account) IsDeleted() bool { return a.deleted }

// CreatedAt returns the sign-up timestamp.
func (a *Account) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns the last mutation timestamp.
func (a *Account) UpdatedAt() time.Time { return a.updatedAt }

// Version returns the fold count.
func (a *Account) Version() int { return a.recorder.Version() }

// LoadedVersion returns the stream version at load time.
func (a *Account) LoadedVersion() int { return a.recorder.LoadedVersion() }

// Uncommitted returns raised events not yet persisted.
func (a *Account) Uncommitted() []shared.Event { return a.recorder.Uncommitted() }

// ClearUncommitted drops the raised-events buffer after a successful append.
func (a *Account) ClearUncommitted() { a.recorder.Clear() }
