package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/envelope"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/persistence/memory"
)

const (
	envelopeID = shared.EnvelopeID("11111111-1111-1111-1111-111111111111")
	ownerID    = shared.AccountID("22222222-2222-2222-2222-222222222222")
	requestID  = shared.RequestID("44444444-4444-4444-4444-444444444444")
)

var t0 = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func created() *envelope.CreatedEvent {
	name, _ := shared.NewEnvelopeName("Groceries")
	return envelope.NewCreatedEvent(envelopeID, ownerID, name, shared.MustParseMoney("500.00"), shared.DefaultCurrency, requestID, t0)
}

func TestEnvelopeProjector_Created(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	p := NewEnvelopeProjector(views, nil, nil)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, created()))

	row, err := views.Get(ctx, envelopeID.String())
	require.NoError(t, err)
	assert.Equal(t, ownerID.String(), row.OwnerID)
	assert.Equal(t, "Groceries", row.Name)
	assert.Equal(t, int64(50000), row.TargetedAmount)
	assert.Equal(t, int64(0), row.CurrentAmount)
	assert.False(t, row.Deleted)
}

func TestEnvelopeProjector_RedeliveryConverges(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	p := NewEnvelopeProjector(views, nil, nil)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, created()))

	credited := envelope.NewCreditedEvent(envelopeID, ownerID, shared.MustParseMoney("500.00"), shared.MustParseMoney("500.00"), requestID, t0.Add(time.Minute))

	// At-least-once delivery: applying the same credit twice must not
	// double the balance, because the event carries the absolute total.
	require.NoError(t, p.Handle(ctx, credited))
	require.NoError(t, p.Handle(ctx, credited))

	row, err := views.Get(ctx, envelopeID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(50000), row.CurrentAmount)
}

func TestEnvelopeProjector_UpdateBeforeCreateIsNoOp(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	p := NewEnvelopeProjector(views, nil, nil)
	ctx := context.Background()

	credited := envelope.NewCreditedEvent(envelopeID, ownerID, shared.MustParseMoney("10.00"), shared.MustParseMoney("10.00"), requestID, t0)
	require.NoError(t, p.Handle(ctx, credited))

	_, err := views.Get(ctx, envelopeID.String())
	assert.ErrorIs(t, err, shared.ErrViewNotFound)
}

func TestEnvelopeProjector_Deleted(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	p := NewEnvelopeProjector(views, nil, nil)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, created()))
	deleted := envelope.NewDeletedEvent(envelopeID, ownerID, requestID, t0.Add(time.Minute))
	require.NoError(t, p.Handle(ctx, deleted))
	require.NoError(t, p.Handle(ctx, deleted))

	row, err := views.Get(ctx, envelopeID.String())
	require.NoError(t, err)
	assert.True(t, row.Deleted)
}

func TestEnvelopeProjector_RewoundRecreatesRow(t *testing.T) {
	// A rewound event carries a full snapshot, so it rebuilds the row even
	// when the view row was never written or has been lost.
	views := memory.NewEnvelopeViewRepository()
	p := NewEnvelopeProjector(views, nil, nil)
	ctx := context.Background()

	rewound := envelope.NewRewoundEvent(envelopeID, ownerID, envelope.Snapshot{
		Name:           "Groceries",
		TargetedAmount: 50000,
		CurrentAmount:  150000,
		Currency:       "EUR",
		CreatedAt:      t0,
		UpdatedAt:      t0.Add(time.Minute),
	}, t0.Add(time.Minute), requestID, t0.Add(2*time.Minute))

	require.NoError(t, p.Handle(ctx, rewound))

	row, err := views.Get(ctx, envelopeID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(150000), row.CurrentAmount)
	assert.Equal(t, "Groceries", row.Name)
}

type failingNotifier struct{ calls int }

func (n *failingNotifier) Notify(context.Context, shared.Event) error {
	n.calls++
	return errors.New("sink unavailable")
}

func TestEnvelopeProjector_NotifierFailureDoesNotFailHandle(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	notifier := &failingNotifier{}
	p := NewEnvelopeProjector(views, notifier, nil)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, created()))
	assert.Equal(t, 1, notifier.calls)

	// The primary write still happened.
	_, err := views.Get(ctx, envelopeID.String())
	require.NoError(t, err)
}

type fakeIndex struct {
	marked   map[string]string
	unmarked map[string]string
	err      error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{marked: make(map[string]string), unmarked: make(map[string]string)}
}

func (f *fakeIndex) Mark(_ context.Context, scope, key string) error {
	f.marked[scope] = key
	return f.err
}

func (f *fakeIndex) Unmark(_ context.Context, scope, key string) error {
	f.unmarked[scope] = key
	return f.err
}

func TestNameIndexProjector(t *testing.T) {
	index := newFakeIndex()
	p := NewNameIndexProjector(index, nil)
	ctx := context.Background()
	scope := registry.NamesStreamID(ownerID)

	registered := registry.NewRegisteredEvent(scope, "digest-1", envelopeID.String(), requestID, t0)
	require.NoError(t, p.Handle(ctx, registered))
	assert.Equal(t, "digest-1", index.marked[scope])

	released := registry.NewReleasedEvent(scope, "digest-1", envelopeID.String(), requestID, t0)
	require.NoError(t, p.Handle(ctx, released))
	assert.Equal(t, "digest-1", index.unmarked[scope])
}

func TestNameIndexProjector_IndexErrorIsSwallowed(t *testing.T) {
	index := newFakeIndex()
	index.err = errors.New("redis down")
	p := NewNameIndexProjector(index, nil)

	registered := registry.NewRegisteredEvent(registry.EmailStreamID, "digest-1", ownerID.String(), requestID, t0)
	assert.NoError(t, p.Handle(context.Background(), registered))
}
