package envelope

import (
	"encoding/json"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Envelope event payloads. The name field is personal data: it is sealed
// with the owner's key before an event is appended and opened again during
// rehydration. All other fields are stored in the clear.

func init() {
	shared.RegisterDecoder(shared.EventEnvelopeCreated, decodeInto(func() shared.Event { return &CreatedEvent{} }))
	shared.RegisterDecoder(shared.EventEnvelopeRenamed, decodeInto(func() shared.Event { return &RenamedEvent{} }))
	shared.RegisterDecoder(shared.EventEnvelopeCredited, decodeInto(func() shared.Event { return &CreditedEvent{} }))
	shared.RegisterDecoder(shared.EventEnvelopeDebited, decodeInto(func() shared.Event { return &DebitedEvent{} }))
	shared.RegisterDecoder(shared.EventEnvelopeTargetChanged, decodeInto(func() shared.Event { return &TargetChangedEvent{} }))
	shared.RegisterDecoder(shared.EventEnvelopeDeleted, decodeInto(func() shared.Event { return &DeletedEvent{} }))
	shared.RegisterDecoder(shared.EventEnvelopeRewound, decodeInto(func() shared.Event { return &RewoundEvent{} }))
	shared.RegisterDecoder(shared.EventEnvelopeReplayed, decodeInto(func() shared.Event { return &ReplayedEvent{} }))
}

func decodeInto(newEvent func() shared.Event) shared.DecodeFunc {
	return func(payload []byte) (shared.Event, error) {
		event := newEvent()
		if err := json.Unmarshal(payload, event); err != nil {
			return nil, err
		}
		return event, nil
	}
}

// CreatedEvent is the envelope's creation event and must be the first
// record of every envelope stream.
type CreatedEvent struct {
	shared.BaseEvent
	Name           string `json:"name"`
	TargetedAmount int64  `json:"targeted_amount"`
	Currency       string `json:"currency"`
}

// NewCreatedEvent creates a new CreatedEvent.
func NewCreatedEvent(id shared.EnvelopeID, owner shared.AccountID, name shared.EnvelopeName, target shared.Money, currency shared.Currency, requestID shared.RequestID, occurredAt time.Time) *CreatedEvent {
	return &CreatedEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventEnvelopeCreated, id.String(), owner.String(), requestID.String(), occurredAt),
		Name:           name.String(),
		TargetedAmount: target.Cents(),
		Currency:       currency.String(),
	}
}

// SealPII implements shared.Sensitive.
func (e *CreatedEvent) SealPII(seal shared.SealFn) error {
	sealed, err := seal(e.Name)
	if err != nil {
		return err
	}
	e.Name = sealed
	return nil
}

// OpenPII implements shared.Sensitive.
func (e *CreatedEvent) OpenPII(open shared.OpenFn) error {
	opened, err := open(e.Name)
	if err != nil {
		return err
	}
	e.Name = opened
	return nil
}

// RenamedEvent records a name change.
type RenamedEvent struct {
	shared.BaseEvent
	Name string `json:"name"`
}

// NewRenamedEvent creates a new RenamedEvent.
func NewRenamedEvent(id shared.EnvelopeID, owner shared.AccountID, name shared.EnvelopeName, requestID shared.RequestID, occurredAt time.Time) *RenamedEvent {
	return &RenamedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventEnvelopeRenamed, id.String(), owner.String(), requestID.String(), occurredAt),
		Name:      name.String(),
	}
}

// SealPII implements shared.Sensitive.
func (e *RenamedEvent) SealPII(seal shared.SealFn) error {
	sealed, err := seal(e.Name)
	if err != nil {
		return err
	}
	e.Name = sealed
	return nil
}

// OpenPII implements shared.Sensitive.
func (e *RenamedEvent) OpenPII(open shared.OpenFn) error {
	opened, err := open(e.Name)
	if err != nil {
		return err
	}
	e.Name = opened
	return nil
}

// CreditedEvent records money added to the envelope. NewBalance carries the
// aggregate's authoritative total after the credit so that projections can
// converge under re-delivery instead of re-adding the delta.
type CreditedEvent struct {
	shared.BaseEvent
	Amount     int64 `json:"amount"`
	NewBalance int64 `json:"new_balance"`
}

// NewCreditedEvent creates a new CreditedEvent.
func NewCreditedEvent(id shared.EnvelopeID, owner shared.AccountID, amount, newBalance shared.Money, requestID shared.RequestID, occurredAt time.Time) *CreditedEvent {
	return &CreditedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventEnvelopeCredited, id.String(), owner.String(), requestID.String(), occurredAt),
		Amount:     amount.Cents(),
		NewBalance: newBalance.Cents(),
	}
}

// DebitedEvent records money removed from the envelope.
type DebitedEvent struct {
	shared.BaseEvent
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
	Reason     string `json:"reason,omitempty"`
}

// NewDebitedEvent creates a new DebitedEvent.
func NewDebitedEvent(id shared.EnvelopeID, owner shared.AccountID, amount, newBalance shared.Money, reason string, requestID shared.RequestID, occurredAt time.Time) *DebitedEvent {
	return &DebitedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventEnvelopeDebited, id.String(), owner.String(), requestID.String(), occurredAt),
		Amount:     amount.Cents(),
		NewBalance: newBalance.Cents(),
		Reason:     reason,
	}
}

// TargetChangedEvent records a change of the targeted amount.
type TargetChangedEvent struct {
	shared.BaseEvent
	TargetedAmount int64 `json:"targeted_amount"`
}

// NewTargetChangedEvent creates a new TargetChangedEvent.
func NewTargetChangedEvent(id shared.EnvelopeID, owner shared.AccountID, target shared.Money, requestID shared.RequestID, occurredAt time.Time) *TargetChangedEvent {
	return &TargetChangedEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventEnvelopeTargetChanged, id.String(), owner.String(), requestID.String(), occurredAt),
		TargetedAmount: target.Cents(),
	}
}

// DeletedEvent records the envelope's terminal deletion. The stream itself
// is never removed; the flag only closes the aggregate to further mutation.
type DeletedEvent struct {
	shared.BaseEvent
}

// NewDeletedEvent creates a new DeletedEvent.
func NewDeletedEvent(id shared.EnvelopeID, owner shared.AccountID, requestID shared.RequestID, occurredAt time.Time) *DeletedEvent {
	return &DeletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventEnvelopeDeleted, id.String(), owner.String(), requestID.String(), occurredAt),
	}
}

// Snapshot carries the full reconstructed state of an envelope inside
// rewound and replayed events.
type Snapshot struct {
	Name           string    `json:"name"`
	TargetedAmount int64     `json:"targeted_amount"`
	CurrentAmount  int64     `json:"current_amount"`
	Currency       string    `json:"currency"`
	Deleted        bool      `json:"deleted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RewoundEvent re-asserts a past state as a new forward-only event on top
// of the full, untouched history.
type RewoundEvent struct {
	shared.BaseEvent
	Snapshot
	RewoundTo time.Time `json:"rewound_to"`
}

// NewRewoundEvent creates a new RewoundEvent.
func NewRewoundEvent(id shared.EnvelopeID, owner shared.AccountID, snapshot Snapshot, rewoundTo time.Time, requestID shared.RequestID, occurredAt time.Time) *RewoundEvent {
	return &RewoundEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventEnvelopeRewound, id.String(), owner.String(), requestID.String(), occurredAt),
		Snapshot:  snapshot,
		RewoundTo: rewoundTo.UTC(),
	}
}

// SealPII implements shared.Sensitive.
func (e *RewoundEvent) SealPII(seal shared.SealFn) error {
	sealed, err := seal(e.Name)
	if err != nil {
		return err
	}
	e.Name = sealed
	return nil
}

// OpenPII implements shared.Sensitive.
func (e *RewoundEvent) OpenPII(open shared.OpenFn) error {
	opened, err := open(e.Name)
	if err != nil {
		return err
	}
	e.Name = opened
	return nil
}

// ReplayedEvent re-asserts the current state without any new business fact,
// used to resynchronize read models after a read-side rebuild.
type ReplayedEvent struct {
	shared.BaseEvent
	Snapshot
}

// NewReplayedEvent creates a new ReplayedEvent.
func NewReplayedEvent(id shared.EnvelopeID, owner shared.AccountID, snapshot Snapshot, requestID shared.RequestID, occurredAt time.Time) *ReplayedEvent {
	return &ReplayedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventEnvelopeReplayed, id.String(), owner.String(), requestID.String(), occurredAt),
		Snapshot:  snapshot,
	}
}

// SealPII implements shared.Sensitive.
func (e *ReplayedEvent) SealPII(seal shared.SealFn) error {
	sealed, err := seal(e.Name)
	if err != nil {
		return err
	}
	e.Name = sealed
	return nil
}

// OpenPII implements shared.Sensitive.
func (e *ReplayedEvent) OpenPII(open shared.OpenFn) error {
	opened, err := open(e.Name)
	if err != nil {
		return err
	}
	e.Name = opened
	return nil
}
