package account

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

func init() {
	shared.RegisterDecoder(shared.EventAccountSignedUp, func(payload []byte) (shared.Event, error) {
		event := &SignedUpEvent{}
		if err := json.Unmarshal(payload, event); err != nil {
			return nil, err
		}
		return event, nil
	})
	shared.RegisterDecoder(shared.EventAccountRenamed, func(payload []byte) (shared.Event, error) {
		event := &RenamedEvent{}
		if err := json.Unmarshal(payload, event); err != nil {
			return nil, err
		}
		return event, nil
	})
	shared.RegisterDecoder(shared.EventAccountDeleted, func(payload []byte) (shared.Event, error) {
		event := &DeletedEvent{}
		if err := json.Unmarshal(payload, event); err != nil {
			return nil, err
		}
		return event, nil
	})
}

// EmailKey digests an email address into the global email registry key.
// The registry stream stores only this digest, never the address itself.
func EmailKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// SignedUpEvent is the account's creation event. Email and display name
// are personal fields sealed with the account's own key; the password is
// stored only as a bcrypt hash.
type SignedUpEvent struct {
	shared.BaseEvent
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"password_hash"`
	Language     string `json:"language"`
}

// NewSignedUpEvent creates a new SignedUpEvent.
func NewSignedUpEvent(id shared.AccountID, email, displayName, passwordHash, language string, requestID shared.RequestID, occurredAt time.Time) *SignedUpEvent {
	return &SignedUpEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventAccountSignedUp, id.String(), id.String(), requestID.String(), occurredAt),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Language:     language,
	}
}

// SealPII implements shared.Sensitive.
func (e *SignedUpEvent) SealPII(seal shared.SealFn) error {
	sealedEmail, err := seal(e.Email)
	if err != nil {
		return err
	}
	sealedName, err := seal(e.DisplayName)
	if err != nil {
		return err
	}
	e.Email = sealedEmail
	e.DisplayName = sealedName
	return nil
}

// OpenPII implements shared.Sensitive.
func (e *SignedUpEvent) OpenPII(open shared.OpenFn) error {
	email, err := open(e.Email)
	if err != nil {
		return err
	}
	name, err := open(e.DisplayName)
	if err != nil {
		return err
	}
	e.Email = email
	e.DisplayName = name
	return nil
}

// RenamedEvent records a display-name change.
type RenamedEvent struct {
	shared.BaseEvent
	DisplayName string `json:"display_name"`
}

// NewRenamedEvent creates a new RenamedEvent.
func NewRenamedEvent(id shared.AccountID, displayName string, requestID shared.RequestID, occurredAt time.Time) *RenamedEvent {
	return &RenamedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventAccountRenamed, id.String(), id.String(), requestID.String(), occurredAt),
		DisplayName: displayName,
	}
}

// SealPII implements shared.Sensitive.
func (e *RenamedEvent) SealPII(seal shared.SealFn) error {
	sealed, err := seal(e.DisplayName)
	if err != nil {
		return err
	}
	e.DisplayName = sealed
	return nil
}

// OpenPII implements shared.Sensitive.
func (e *RenamedEvent) OpenPII(open shared.OpenFn) error {
	opened, err := open(e.DisplayName)
	if err != nil {
		return err
	}
	e.DisplayName = opened
	return nil
}

// DeletedEvent records account deletion. The erasure itself happens in the
// command layer by destroying the account's encryption key.
type DeletedEvent struct {
	shared.BaseEvent
}

// NewDeletedEvent creates a new DeletedEvent.
func NewDeletedEvent(id shared.AccountID, requestID shared.RequestID, occurredAt time.Time) *DeletedEvent {
	return &DeletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventAccountDeleted, id.String(), id.String(), requestID.String(), occurredAt),
	}
}
