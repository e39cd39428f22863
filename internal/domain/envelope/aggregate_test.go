package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

const (
	testEnvelopeID = shared.EnvelopeID("11111111-1111-1111-1111-111111111111")
	testOwnerID    = shared.AccountID("22222222-2222-2222-2222-222222222222")
	testStrangerID = shared.AccountID("33333333-3333-3333-3333-333333333333")
	testRequestID  = shared.RequestID("44444444-4444-4444-4444-444444444444")
)

var t0 = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestEnvelope(t *testing.T) *Envelope {
	t.Helper()
	name, err := shared.NewEnvelopeName("Groceries")
	require.NoError(t, err)

	e, err := New(testEnvelopeID, testOwnerID, name, shared.MustParseMoney("500.00"), shared.DefaultCurrency, testRequestID, t0)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	e := newTestEnvelope(t)

	assert.Equal(t, testEnvelopeID, e.ID())
	assert.Equal(t, testOwnerID, e.Owner())
	assert.Equal(t, shared.EnvelopeName("Groceries"), e.Name())
	assert.Equal(t, shared.MustParseMoney("500.00"), e.TargetedAmount())
	assert.Equal(t, shared.MoneyZero, e.CurrentAmount())
	assert.False(t, e.IsDeleted())

	assert.Equal(t, 1, e.Version())
	assert.Equal(t, 0, e.LoadedVersion())
	require.Len(t, e.Uncommitted(), 1)
	assert.IsType(t, &CreatedEvent{}, e.Uncommitted()[0])
}

func TestNew_Invalid(t *testing.T) {
	name, _ := shared.NewEnvelopeName("Groceries")

	_, err := New("not-a-uuid", testOwnerID, name, shared.MoneyZero, shared.DefaultCurrency, testRequestID, t0)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	_, err = New(testEnvelopeID, testOwnerID, name, shared.MustParseMoney("-1.00"), shared.DefaultCurrency, testRequestID, t0)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestCreditDebit(t *testing.T) {
	e := newTestEnvelope(t)

	require.NoError(t, e.Credit(testOwnerID, shared.MustParseMoney("100.00"), testRequestID, t0.Add(time.Minute)))
	require.NoError(t, e.Credit(testOwnerID, shared.MustParseMoney("0.33"), testRequestID, t0.Add(2*time.Minute)))
	assert.Equal(t, shared.MustParseMoney("100.33"), e.CurrentAmount())

	require.NoError(t, e.Debit(testOwnerID, shared.MustParseMoney("0.33"), "coffee", testRequestID, t0.Add(3*time.Minute)))
	assert.Equal(t, shared.MustParseMoney("100.00"), e.CurrentAmount())
	assert.Equal(t, 4, e.Version())
}

func TestCredit_ExceedingTargetAllowed(t *testing.T) {
	e := newTestEnvelope(t)

	require.NoError(t, e.Credit(testOwnerID, shared.MustParseMoney("9999.99"), testRequestID, t0))
	assert.Equal(t, shared.MustParseMoney("9999.99"), e.CurrentAmount())
}

func TestDebit_InsufficientFunds(t *testing.T) {
	e := newTestEnvelope(t)
	require.NoError(t, e.Credit(testOwnerID, shared.MustParseMoney("10.00"), testRequestID, t0))

	err := e.Debit(testOwnerID, shared.MustParseMoney("10.01"), "", testRequestID, t0)
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)
	// The failed mutation raised nothing.
	assert.Equal(t, shared.MustParseMoney("10.00"), e.CurrentAmount())
	assert.Equal(t, 2, e.Version())
}

func TestMutations_RejectNonOwner(t *testing.T) {
	e := newTestEnvelope(t)

	err := e.Credit(testStrangerID, shared.MustParseMoney("1.00"), testRequestID, t0)
	assert.ErrorIs(t, err, shared.ErrOwnershipViolation)

	err = e.Delete(testStrangerID, testRequestID, t0)
	assert.ErrorIs(t, err, shared.ErrOwnershipViolation)
}

func TestMutations_RejectDeleted(t *testing.T) {
	e := newTestEnvelope(t)
	require.NoError(t, e.Delete(testOwnerID, testRequestID, t0))
	assert.True(t, e.IsDeleted())

	err := e.Credit(testOwnerID, shared.MustParseMoney("1.00"), testRequestID, t0)
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)
}

func TestFromEvents_Deterministic(t *testing.T) {
	e := newTestEnvelope(t)
	name, _ := shared.NewEnvelopeName("Food")
	require.NoError(t, e.Credit(testOwnerID, shared.MustParseMoney("250.00"), testRequestID, t0.Add(time.Minute)))
	require.NoError(t, e.Rename(testOwnerID, name, testRequestID, t0.Add(2*time.Minute)))
	require.NoError(t, e.ChangeTarget(testOwnerID, shared.MustParseMoney("300.00"), testRequestID, t0.Add(3*time.Minute)))

	events := e.Uncommitted()
	require.Len(t, events, 4)

	rebuilt, err := FromEvents(events)
	require.NoError(t, err)

	assert.Equal(t, e.ID(), rebuilt.ID())
	assert.Equal(t, e.Name(), rebuilt.Name())
	assert.Equal(t, e.CurrentAmount(), rebuilt.CurrentAmount())
	assert.Equal(t, e.TargetedAmount(), rebuilt.TargetedAmount())
	assert.Equal(t, e.Version(), rebuilt.Version())
	// A rehydrated aggregate has nothing left to persist.
	assert.Empty(t, rebuilt.Uncommitted())
	assert.Equal(t, 4, rebuilt.LoadedVersion())
}

func TestFromEvents_RejectsCorruptStream(t *testing.T) {
	_, err := FromEvents(nil)
	assert.ErrorIs(t, err, shared.ErrStreamNotFound)

	credited := NewCreditedEvent(testEnvelopeID, testOwnerID, shared.MustParseMoney("1.00"), shared.MustParseMoney("1.00"), testRequestID, t0)
	_, err = FromEvents([]shared.Event{credited})
	assert.ErrorIs(t, err, shared.ErrCorruptStream)
}

func TestRewind_ReassertsPastState(t *testing.T) {
	e := newTestEnvelope(t)
	require.NoError(t, e.Credit(testOwnerID, shared.MustParseMoney("1500.00"), testRequestID, t0.Add(time.Minute)))
	past := e.SnapshotState()

	require.NoError(t, e.Debit(testOwnerID, shared.MustParseMoney("300.00"), "rent", testRequestID, t0.Add(2*time.Minute)))
	assert.Equal(t, shared.MustParseMoney("1200.00"), e.CurrentAmount())

	require.NoError(t, e.Rewind(testOwnerID, past, t0.Add(time.Minute), testRequestID, t0.Add(3*time.Minute)))
	assert.Equal(t, shared.MustParseMoney("1500.00"), e.CurrentAmount())

	// History only grows: the debit stays in the stream under the rewind.
	assert.Equal(t, 4, e.Version())
	require.Len(t, e.Uncommitted(), 4)
	assert.IsType(t, &RewoundEvent{}, e.Uncommitted()[3])
}

func TestReplay_NoStateChange(t *testing.T) {
	e := newTestEnvelope(t)
	require.NoError(t, e.Credit(testOwnerID, shared.MustParseMoney("42.00"), testRequestID, t0.Add(time.Minute)))

	before := e.SnapshotState()
	require.NoError(t, e.Replay(testOwnerID, testRequestID, t0.Add(2*time.Minute)))

	assert.Equal(t, before.CurrentAmount, e.CurrentAmount().Cents())
	assert.Equal(t, before.Name, e.Name().String())
	assert.Equal(t, 3, e.Version())
}
