// Package envelope contains the budget envelope aggregate. An envelope's
// state is always a pure fold of apply over its ordered event stream; no
// field is ever set outside an apply handler.
package envelope

import (
	"fmt"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Envelope is a budget envelope: a named pot of money with a targeted
// amount, owned by exactly one account.
type Envelope struct {
	id        shared.EnvelopeID
	owner     shared.AccountID
	name      shared.EnvelopeName
	targeted  shared.Money
	current   shared.Money
	currency  shared.Currency
	deleted   bool
	createdAt time.Time
	updatedAt time.Time

	recorder shared.Recorder
}

// ─────────────────────────────────────────────────────────────────────────────
// Construction
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh envelope by raising its creation event. Uniqueness
// of the name is not checked here: that is the name registry's job, invoked
// by the command handler before this constructor.
func New(id shared.EnvelopeID, owner shared.AccountID, name shared.EnvelopeName, target shared.Money, currency shared.Currency, requestID shared.RequestID, now time.Time) (*Envelope, error) {
	if id.IsEmpty() || !id.IsValid() {
		return nil, shared.NewDomainError("envelope", "New", shared.ErrInvalidID, "invalid envelope ID")
	}
	if owner.IsEmpty() || !owner.IsValid() {
		return nil, shared.NewDomainError("envelope", "New", shared.ErrInvalidID, "invalid owner ID")
	}
	if !name.IsValid() {
		return nil, shared.NewDomainError("envelope", "New", shared.ErrInvalidInput, "invalid envelope name")
	}
	if target.IsNegative() {
		return nil, shared.NewDomainError("envelope", "New", shared.ErrNegativeValue, "targeted amount cannot be negative")
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError("envelope", "New", shared.ErrInvalidInput, "invalid currency")
	}

	e := &Envelope{}
	e.raise(NewCreatedEvent(id, owner, name, target, currency, requestID, now))
	return e, nil
}

// FromEvents rehydrates an envelope by folding apply over the ordered,
// already-decoded event sequence. The first event must be the creation
// event; anything else means the stream is corrupt.
func FromEvents(events []shared.Event) (*Envelope, error) {
	if len(events) == 0 {
		return nil, shared.NewDomainError("envelope", "FromEvents", shared.ErrStreamNotFound, "empty event sequence")
	}
	if _, ok := events[0].(*CreatedEvent); !ok {
		return nil, shared.NewDomainError("envelope", "FromEvents", shared.ErrCorruptStream,
			fmt.Sprintf("first event is %q, not the creation event", events[0].EventType()))
	}

	e := &Envelope{}
	for _, event := range events {
		e.apply(event)
		e.recorder.Applied()
	}
	return e, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Mutations
// ─────────────────────────────────────────────────────────────────────────────

// Rename changes the envelope's name. Releasing the old name and
// registering the new one in the name registry is the command handler's
// responsibility.
func (e *Envelope) Rename(actor shared.AccountID, name shared.EnvelopeName, requestID shared.RequestID, now time.Time) error {
	if err := e.guard(actor, "Rename"); err != nil {
		return err
	}
	if !name.IsValid() {
		return shared.NewDomainError("envelope", "Rename", shared.ErrInvalidInput, "invalid envelope name")
	}

	e.raise(NewRenamedEvent(e.id, e.owner, name, requestID, now))
	return nil
}

// Credit adds money to the envelope. Exceeding the targeted amount is
// allowed; the target is advisory.
func (e *Envelope) Credit(actor shared.AccountID, amount shared.Money, requestID shared.RequestID, now time.Time) error {
	if err := e.guard(actor, "Credit"); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("envelope", "Credit", shared.ErrInvalidOperation, "credit amount must be positive")
	}

	e.raise(NewCreditedEvent(e.id, e.owner, amount, e.current.Add(amount), requestID, now))
	return nil
}

// Debit removes money from the envelope. The balance can never go below
// zero; there is no overdraft.
func (e *Envelope) Debit(actor shared.AccountID, amount shared.Money, reason string, requestID shared.RequestID, now time.Time) error {
	if err := e.guard(actor, "Debit"); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("envelope", "Debit", shared.ErrInvalidOperation, "debit amount must be positive")
	}
	if e.current.Sub(amount).IsNegative() {
		return shared.NewDomainError("envelope", "Debit", shared.ErrInvalidOperation,
			fmt.Sprintf("insufficient funds: balance %s, debit %s", e.current, amount))
	}

	e.raise(NewDebitedEvent(e.id, e.owner, amount, e.current.Sub(amount), reason, requestID, now))
	return nil
}

// ChangeTarget updates the targeted amount.
func (e *Envelope) ChangeTarget(actor shared.AccountID, target shared.Money, requestID shared.RequestID, now time.Time) error {
	if err := e.guard(actor, "ChangeTarget"); err != nil {
		return err
	}
	if target.IsNegative() {
		return shared.NewDomainError("envelope", "ChangeTarget", shared.ErrNegativeValue, "targeted amount cannot be negative")
	}

	e.raise(NewTargetChangedEvent(e.id, e.owner, target, requestID, now))
	return nil
}

// Delete closes the envelope to further mutation. The event stream is kept
// forever; deletion is a flag, not removal.
func (e *Envelope) Delete(actor shared.AccountID, requestID shared.RequestID, now time.Time) error {
	if err := e.guard(actor, "Delete"); err != nil {
		return err
	}

	e.raise(NewDeletedEvent(e.id, e.owner, requestID, now))
	return nil
}

// Rewind re-asserts the given past state as a new event on top of the full
// history. The snapshot comes from folding the stream as of the rewind
// point; history itself is never truncated or edited.
func (e *Envelope) Rewind(actor shared.AccountID, past Snapshot, rewoundTo time.Time, requestID shared.RequestID, now time.Time) error {
	if err := e.guard(actor, "Rewind"); err != nil {
		return err
	}

	e.raise(NewRewoundEvent(e.id, e.owner, past, rewoundTo, requestID, now))
	return nil
}

// Replay re-asserts the current state as a new event, forcing downstream
// read models to resynchronize without any new business fact.
func (e *Envelope) Replay(actor shared.AccountID, requestID shared.RequestID, now time.Time) error {
	if err := e.guard(actor, "Replay"); err != nil {
		return err
	}

	e.raise(NewReplayedEvent(e.id, e.owner, e.SnapshotState(), requestID, now))
	return nil
}

// guard runs the checks shared by every mutation: the actor must be the
// owner and the envelope must not be deleted.
func (e *Envelope) guard(actor shared.AccountID, op string) error {
	if actor != e.owner {
		return shared.NewDomainError("envelope", op, shared.ErrOwnershipViolation,
			fmt.Sprintf("account %s does not own envelope %s", actor, e.id))
	}
	if e.deleted {
		return shared.NewDomainError("envelope", op, shared.ErrInvalidOperation, "envelope is deleted")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Event application
// ─────────────────────────────────────────────────────────────────────────────

// raise applies a new event to in-memory state and buffers it for the
// command handler to persist.
func (e *Envelope) raise(event shared.Event) {
	e.apply(event)
	e.recorder.Record(event)
}

// apply is total and exhaustive over the envelope's closed set of event
// types. An unrecognized type is a programming error: events only enter
// here through raise or through the registered decoders.
func (e *Envelope) apply(event shared.Event) {
	switch ev := event.(type) {
	case *CreatedEvent:
		e.id = shared.EnvelopeID(ev.AggregateId)
		e.owner = shared.AccountID(ev.UserId)
		e.name = shared.EnvelopeName(ev.Name)
		e.targeted = shared.Money(ev.TargetedAmount)
		e.current = shared.MoneyZero
		e.currency = shared.Currency(ev.Currency)
		e.createdAt = ev.Timestamp
		e.updatedAt = ev.Timestamp

	case *RenamedEvent:
		e.name = shared.EnvelopeName(ev.Name)
		e.updatedAt = ev.Timestamp

	case *CreditedEvent:
		e.current = shared.Money(ev.NewBalance)
		e.updatedAt = ev.Timestamp

	case *DebitedEvent:
		e.current = shared.Money(ev.NewBalance)
		e.updatedAt = ev.Timestamp

	case *TargetChangedEvent:
		e.targeted = shared.Money(ev.TargetedAmount)
		e.updatedAt = ev.Timestamp

	case *DeletedEvent:
		e.deleted = true
		e.updatedAt = ev.Timestamp

	case *RewoundEvent:
		e.applySnapshot(ev.Snapshot, ev.Timestamp)

	case *ReplayedEvent:
		e.applySnapshot(ev.Snapshot, ev.Timestamp)

	default:
		panic(fmt.Sprintf("envelope: unknown event type %T", event))
	}
}

func (e *Envelope) applySnapshot(s Snapshot, at time.Time) {
	e.name = shared.EnvelopeName(s.Name)
	e.targeted = shared.Money(s.TargetedAmount)
	e.current = shared.Money(s.CurrentAmount)
	e.currency = shared.Currency(s.Currency)
	e.deleted = s.Deleted
	e.createdAt = s.CreatedAt
	e.updatedAt = at
}

// ─────────────────────────────────────────────────────────────────────────────
// Accessors
// ─────────────────────────────────────────────────────────────────────────────

// ID returns the envelope's identity.
func (e *Envelope) ID() shared.EnvelopeID { return e.id }

// Owner returns the owning account.
func (e *Envelope) Owner() shared.AccountID { return e.owner }

// Name returns the current name.
func (e *Envelope) Name() shared.EnvelopeName { return e.name }

// TargetedAmount returns the savings target.
func (e *Envelope) TargetedAmount() shared.Money { return e.targeted }

// CurrentAmount returns the current balance.
func (e *Envelope) CurrentAmount() shared.Money { return e.current }

// Currency returns the envelope's currency.
func (e *Envelope) Currency() shared.Currency { return e.currency }

// IsDeleted reports whether the envelope has been deleted.
func (e *Envelope) IsDeleted() bool { return e.deleted }

// CreatedAt returns the creation timestamp.
func (e *Envelope) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns the last mutation timestamp.
func (e *Envelope) UpdatedAt() time.Time { return e.updatedAt }

// Version returns the fold count: persisted plus uncommitted events.
func (e *Envelope) Version() int { return e.recorder.Version() }

// LoadedVersion returns the stream version at load time; command handlers
// pass it as expectedVersion to the store.
func (e *Envelope) LoadedVersion() int { return e.recorder.LoadedVersion() }

// Uncommitted returns raised events not yet persisted.
func (e *Envelope) Uncommitted() []shared.Event { return e.recorder.Uncommitted() }

// ClearUncommitted drops the raised-events buffer after a successful append.
func (e *Envelope) ClearUncommitted() { e.recorder.Clear() }

// SnapshotState captures the envelope's current state for rewind/replay
// events.
func (e *Envelope) SnapshotState() Snapshot {
	return Snapshot{
		Name:           e.name.String(),
		TargetedAmount: e.targeted.Cents(),
		CurrentAmount:  e.current.Cents(),
		Currency:       e.currency.String(),
		Deleted:        e.deleted,
		CreatedAt:      e.createdAt,
		UpdatedAt:      e.updatedAt,
	}
}
