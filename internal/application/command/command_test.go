package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/registry"
	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/persistence/memory"
	"github.com/budget-hub/budget-envelope-hub/pkg/timeutil"
)

var start = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// fixture wires every handler against the in-memory store, in-memory keys
// and a frozen clock. No publisher: delivery is not under test here.
type fixture struct {
	store *memory.EventStore
	keys  *crypto.MemoryKeyRepository
	clock *timeutil.FakeClock

	signUp         *SignUpHandler
	renameAccount  *RenameAccountHandler
	deleteAccount  *DeleteAccountHandler
	createEnvelope *CreateEnvelopeHandler
	renameEnvelope *RenameEnvelopeHandler
	creditEnvelope *CreditEnvelopeHandler
	debitEnvelope  *DebitEnvelopeHandler
	changeTarget   *ChangeTargetHandler
	deleteEnvelope *DeleteEnvelopeHandler
	rewindEnvelope *RewindEnvelopeHandler
	replayEnvelope *ReplayEnvelopeHandler
}

func newFixture() *fixture {
	store := memory.NewEventStore()
	keys := crypto.NewMemoryKeyRepository()
	clock := timeutil.NewFakeClock(start)

	return &fixture{
		store:          store,
		keys:           keys,
		clock:          clock,
		signUp:         NewSignUpHandler(store, nil, keys, clock),
		renameAccount:  NewRenameAccountHandler(store, nil, keys, clock),
		deleteAccount:  NewDeleteAccountHandler(store, nil, keys, clock),
		createEnvelope: NewCreateEnvelopeHandler(store, nil, keys, nil, clock, nil),
		renameEnvelope: NewRenameEnvelopeHandler(store, nil, keys, clock),
		creditEnvelope: NewCreditEnvelopeHandler(store, nil, keys, clock),
		debitEnvelope:  NewDebitEnvelopeHandler(store, nil, keys, clock),
		changeTarget:   NewChangeTargetHandler(store, nil, keys, clock),
		deleteEnvelope: NewDeleteEnvelopeHandler(store, nil, keys, clock),
		rewindEnvelope: NewRewindEnvelopeHandler(store, nil, keys, clock),
		replayEnvelope: NewReplayEnvelopeHandler(store, nil, keys, clock),
	}
}

func (f *fixture) mustSignUp(t *testing.T, email string) string {
	t.Helper()
	result, err := f.signUp.Handle(context.Background(), SignUpCommand{
		Email:       email,
		DisplayName: "Test User",
		Password:    "correct horse battery",
		RequestID:   uuid.NewString(),
	})
	require.NoError(t, err)
	return result.AccountID
}

func (f *fixture) mustCreateEnvelope(t *testing.T, ownerID, name string) string {
	t.Helper()
	result, err := f.createEnvelope.Handle(context.Background(), CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           name,
		TargetedAmount: "500.00",
		RequestID:      uuid.NewString(),
	})
	require.NoError(t, err)
	return result.EnvelopeID
}

// ─────────────────────────────────────────────────────────────────────────────
// Accounts
// ─────────────────────────────────────────────────────────────────────────────

func TestSignUp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.signUp.Handle(ctx, SignUpCommand{
		Email:       "alice@example.com",
		DisplayName: "Alice",
		Password:    "long enough secret",
		RequestID:   uuid.NewString(),
	})
	require.NoError(t, err)

	assert.True(t, shared.AccountID(result.AccountID).IsValid())
	assert.Equal(t, 1, result.Version)
	require.Len(t, result.Events, 1)

	// The account got its encryption key.
	_, err = f.keys.Get(ctx, result.AccountID)
	require.NoError(t, err)

	// The stored payload carries only ciphertext, never the address.
	stream, err := f.store.Load(ctx, result.AccountID)
	require.NoError(t, err)
	records := stream.Collect()
	require.Len(t, records, 1)
	assert.NotContains(t, string(records[0].Payload), "alice@example.com")
	assert.NotContains(t, string(records[0].Payload), "Alice")

	// So does the email registry stream: digests only.
	regStream, err := f.store.Load(ctx, registry.EmailStreamID)
	require.NoError(t, err)
	regRecords := regStream.Collect()
	require.Len(t, regRecords, 1)
	assert.NotContains(t, string(regRecords[0].Payload), "alice")
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	f := newFixture()
	f.mustSignUp(t, "alice@example.com")

	// Same address, different spelling: the digest collides.
	_, err := f.signUp.Handle(context.Background(), SignUpCommand{
		Email:       "  ALICE@example.com ",
		DisplayName: "Impostor",
		Password:    "another password",
		RequestID:   uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)
}

func TestSignUp_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.signUp.Handle(ctx, SignUpCommand{Email: "no-at-sign", Password: "long enough", RequestID: uuid.NewString()})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.signUp.Handle(ctx, SignUpCommand{Email: "a@b.c", Password: "short", RequestID: uuid.NewString()})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRenameAccount(t *testing.T) {
	f := newFixture()
	accountID := f.mustSignUp(t, "alice@example.com")
	ctx := context.Background()

	result, err := f.renameAccount.Handle(ctx, RenameAccountCommand{
		AccountID:   accountID,
		ActorID:     accountID,
		DisplayName: "Alice Cooper",
		RequestID:   uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)

	// Only the account itself may rename it.
	_, err = f.renameAccount.Handle(ctx, RenameAccountCommand{
		AccountID:   accountID,
		ActorID:     uuid.NewString(),
		DisplayName: "Mallory",
		RequestID:   uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrOwnershipViolation)
}

func TestDeleteAccount_ErasesByKeyDestruction(t *testing.T) {
	f := newFixture()
	accountID := f.mustSignUp(t, "alice@example.com")
	ctx := context.Background()

	_, err := f.deleteAccount.Handle(ctx, DeleteAccountCommand{
		AccountID: accountID,
		ActorID:   accountID,
		RequestID: uuid.NewString(),
	})
	require.NoError(t, err)

	// The key is gone; the event log is not.
	_, err = f.keys.Get(ctx, accountID)
	assert.ErrorIs(t, err, shared.ErrKeyNotFound)
	assert.Equal(t, 2, f.store.CurrentVersion(accountID))

	// Further mutation is rejected; the fold survives the destroyed key.
	_, err = f.renameAccount.Handle(ctx, RenameAccountCommand{
		AccountID:   accountID,
		ActorID:     accountID,
		DisplayName: "Ghost",
		RequestID:   uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)

	// The email claim was released, so the address is usable again.
	f.mustSignUp(t, "alice@example.com")
}

func TestDeleteAccount_RejectsNonOwner(t *testing.T) {
	f := newFixture()
	accountID := f.mustSignUp(t, "alice@example.com")
	strangerID := f.mustSignUp(t, "bob@example.com")

	_, err := f.deleteAccount.Handle(context.Background(), DeleteAccountCommand{
		AccountID: accountID,
		ActorID:   strangerID,
		RequestID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrOwnershipViolation)
}

// ─────────────────────────────────────────────────────────────────────────────
// Envelopes
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateEnvelope(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	ctx := context.Background()

	result, err := f.createEnvelope.Handle(ctx, CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           "Groceries",
		TargetedAmount: "500.00",
		Currency:       "eur",
		RequestID:      uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
	require.Len(t, result.Events, 1)

	// The envelope stream stores the name sealed.
	stream, err := f.store.Load(ctx, result.EnvelopeID)
	require.NoError(t, err)
	records := stream.Collect()
	require.Len(t, records, 1)
	assert.NotContains(t, string(records[0].Payload), "Groceries")
}

func TestCreateEnvelope_DuplicateName(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	otherID := f.mustSignUp(t, "bob@example.com")
	ctx := context.Background()

	f.mustCreateEnvelope(t, ownerID, "Groceries")

	// Same owner, same name modulo case and spacing: conflict.
	_, err := f.createEnvelope.Handle(ctx, CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           "  GROCERIES ",
		TargetedAmount: "100.00",
		RequestID:      uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)

	// The scope is per owner; another account may use the name.
	f.mustCreateEnvelope(t, otherID, "Groceries")
}

func TestCreditAndDebit(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	ctx := context.Background()

	credit, err := f.creditEnvelope.Handle(ctx, CreditEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Amount:     "500.00",
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, "500.00", credit.NewBalance)
	assert.Equal(t, 2, credit.Version)

	debit, err := f.debitEnvelope.Handle(ctx, DebitEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Amount:     "123.45",
		Reason:     "weekly shop",
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, "376.55", debit.NewBalance)
	assert.Equal(t, 3, debit.Version)
}

func TestDebit_InsufficientFunds(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	ctx := context.Background()

	_, err := f.debitEnvelope.Handle(ctx, DebitEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Amount:     "0.01",
		RequestID:  uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)

	// The rejected command appended nothing.
	assert.Equal(t, 1, f.store.CurrentVersion(envelopeID))
}

func TestDebit_RejectsNonOwner(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	strangerID := f.mustSignUp(t, "bob@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")

	_, err := f.debitEnvelope.Handle(context.Background(), DebitEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    strangerID,
		Amount:     "1.00",
		RequestID:  uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrOwnershipViolation)
	assert.Equal(t, 1, f.store.CurrentVersion(envelopeID))
}

func TestRenameEnvelope_RegistryFollows(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	f.mustCreateEnvelope(t, ownerID, "Rent")
	ctx := context.Background()

	// Renaming onto a name another envelope holds conflicts.
	_, err := f.renameEnvelope.Handle(ctx, RenameEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Name:       "rent",
		RequestID:  uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)

	// So does renaming onto the envelope's own current name.
	_, err = f.renameEnvelope.Handle(ctx, RenameEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Name:       "Groceries",
		RequestID:  uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)

	result, err := f.renameEnvelope.Handle(ctx, RenameEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Name:       "Food",
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)

	// The old name is free again.
	f.mustCreateEnvelope(t, ownerID, "Groceries")
}

// conflictingStore fails the next append to one stream with a concurrency
// conflict, then behaves normally.
type conflictingStore struct {
	*memory.EventStore
	failStream string
}

func (s *conflictingStore) Append(ctx context.Context, streamID string, events []shared.Event, expectedVersion int) (int, error) {
	if streamID == s.failStream {
		s.failStream = ""
		return 0, shared.NewDomainError("eventstore", "Append", shared.ErrConcurrencyConflict, "stream moved since load")
	}
	return s.EventStore.Append(ctx, streamID, events, expectedVersion)
}

func TestRenameEnvelope_ConflictKeepsOldNameHeld(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	ctx := context.Background()

	cs := &conflictingStore{EventStore: f.store}
	rename := NewRenameEnvelopeHandler(cs, nil, f.keys, f.clock)

	// The envelope append loses the race after the new name is claimed.
	cs.failStream = envelopeID
	_, err := rename.Handle(ctx, RenameEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Name:       "Food",
		RequestID:  uuid.NewString(),
	})
	require.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	// The envelope still folds to "Groceries", so the name must still be
	// held; the failed rename must not have freed it for another envelope.
	_, err = f.createEnvelope.Handle(ctx, CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           "Groceries",
		TargetedAmount: "1.00",
		RequestID:      uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)

	// "Food" stays claimed by the envelope until the rename lands.
	_, err = f.createEnvelope.Handle(ctx, CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           "Food",
		TargetedAmount: "1.00",
		RequestID:      uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)

	// A retried rename rides the existing claim and completes the move.
	result, err := rename.Handle(ctx, RenameEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Name:       "Food",
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)

	f.mustCreateEnvelope(t, ownerID, "Groceries")
}

func TestDeleteEnvelope_ConflictKeepsNameHeld(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	ctx := context.Background()

	cs := &conflictingStore{EventStore: f.store, failStream: envelopeID}
	del := NewDeleteEnvelopeHandler(cs, nil, f.keys, f.clock)

	_, err := del.Handle(ctx, DeleteEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		RequestID:  uuid.NewString(),
	})
	require.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	// The envelope is still alive, so its name stays taken.
	_, err = f.createEnvelope.Handle(ctx, CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           "Groceries",
		TargetedAmount: "1.00",
		RequestID:      uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)

	// The retried delete frees it.
	_, err = del.Handle(ctx, DeleteEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)
	f.mustCreateEnvelope(t, ownerID, "Groceries")
}

func TestDeleteEnvelope_ReleasesName(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	ctx := context.Background()

	_, err := f.deleteEnvelope.Handle(ctx, DeleteEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)

	// Deleted envelopes refuse further mutation.
	_, err = f.creditEnvelope.Handle(ctx, CreditEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Amount:     "1.00",
		RequestID:  uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)

	// The name went back into the pool.
	f.mustCreateEnvelope(t, ownerID, "Groceries")
}

func TestChangeTarget(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")

	result, err := f.changeTarget.Handle(context.Background(), ChangeTargetCommand{
		EnvelopeID:     envelopeID,
		ActorID:        ownerID,
		TargetedAmount: "750.00",
		RequestID:      uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)
}

// ─────────────────────────────────────────────────────────────────────────────
// Rewind and replay
// ─────────────────────────────────────────────────────────────────────────────

func TestRewind_RestoresPastBalance(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	ctx := context.Background()

	f.clock.Advance(time.Hour)
	_, err := f.creditEnvelope.Handle(ctx, CreditEnvelopeCommand{EnvelopeID: envelopeID, ActorID: ownerID, Amount: "1000.00", RequestID: uuid.NewString()})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.creditEnvelope.Handle(ctx, CreditEnvelopeCommand{EnvelopeID: envelopeID, ActorID: ownerID, Amount: "500.00", RequestID: uuid.NewString()})
	require.NoError(t, err)
	afterSecondCredit := f.clock.Now()

	f.clock.Advance(time.Hour)
	_, err = f.debitEnvelope.Handle(ctx, DebitEnvelopeCommand{EnvelopeID: envelopeID, ActorID: ownerID, Amount: "300.00", RequestID: uuid.NewString()})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	result, err := f.rewindEnvelope.Handle(ctx, RewindEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		RewindTo:   afterSecondCredit,
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, "1500.00", result.Balance)

	// History only grew: create + 2 credits + debit + rewind.
	assert.Equal(t, 5, result.Version)
	assert.Equal(t, 5, f.store.CurrentVersion(envelopeID))

	// Later commands fold on top of the rewound state.
	credit, err := f.creditEnvelope.Handle(ctx, CreditEnvelopeCommand{EnvelopeID: envelopeID, ActorID: ownerID, Amount: "1.00", RequestID: uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, "1501.00", credit.NewBalance)
}

func TestRewind_BeforeCreation(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")

	_, err := f.rewindEnvelope.Handle(context.Background(), RewindEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		RewindTo:   start.Add(-time.Hour),
		RequestID:  uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidOperation)
}

func TestRewind_ResurrectsOldName(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	beforeRename := f.clock.Now()
	ctx := context.Background()

	f.clock.Advance(time.Hour)
	_, err := f.renameEnvelope.Handle(ctx, RenameEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		Name:       "Food",
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.rewindEnvelope.Handle(ctx, RewindEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		RewindTo:   beforeRename,
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)

	// The registry followed the rewind: "Food" is free, "Groceries" is not.
	f.mustCreateEnvelope(t, ownerID, "Food")
	_, err = f.createEnvelope.Handle(ctx, CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           "Groceries",
		TargetedAmount: "1.00",
		RequestID:      uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)
}

func TestReplay_AppendsWithoutStateChange(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	envelopeID := f.mustCreateEnvelope(t, ownerID, "Groceries")
	ctx := context.Background()

	_, err := f.creditEnvelope.Handle(ctx, CreditEnvelopeCommand{EnvelopeID: envelopeID, ActorID: ownerID, Amount: "42.00", RequestID: uuid.NewString()})
	require.NoError(t, err)

	result, err := f.replayEnvelope.Handle(ctx, ReplayEnvelopeCommand{
		EnvelopeID: envelopeID,
		ActorID:    ownerID,
		RequestID:  uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Version)

	credit, err := f.creditEnvelope.Handle(ctx, CreditEnvelopeCommand{EnvelopeID: envelopeID, ActorID: ownerID, Amount: "1.00", RequestID: uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, "43.00", credit.NewBalance)
}

// ─────────────────────────────────────────────────────────────────────────────
// Name pre-check
// ─────────────────────────────────────────────────────────────────────────────

type fakeChecker struct {
	taken bool
	err   error
	calls int
}

func (c *fakeChecker) IsTaken(context.Context, string, string) (bool, error) {
	c.calls++
	return c.taken, c.err
}

func TestCreateEnvelope_PreCheckShortCircuits(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")

	checker := &fakeChecker{taken: true}
	handler := NewCreateEnvelopeHandler(f.store, nil, f.keys, checker, f.clock, nil)

	_, err := handler.Handle(context.Background(), CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           "Groceries",
		TargetedAmount: "1.00",
		RequestID:      uuid.NewString(),
	})
	assert.ErrorIs(t, err, shared.ErrUniquenessConflict)
	assert.Equal(t, 1, checker.calls)
}

func TestCreateEnvelope_PreCheckFailureIsTolerated(t *testing.T) {
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")

	checker := &fakeChecker{err: context.DeadlineExceeded}
	handler := NewCreateEnvelopeHandler(f.store, nil, f.keys, checker, f.clock, nil)

	// A broken cache never blocks the command; the registry decides.
	result, err := handler.Handle(context.Background(), CreateEnvelopeCommand{
		OwnerID:        ownerID,
		Name:           "Groceries",
		TargetedAmount: "1.00",
		RequestID:      uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
}

func TestNameKey_DigestsNormalizedName(t *testing.T) {
	a, _ := shared.NewEnvelopeName("Groceries")
	b, _ := shared.NewEnvelopeName("  groceries ")
	c, _ := shared.NewEnvelopeName("Rent")

	assert.Equal(t, nameKey(a), nameKey(b))
	assert.NotEqual(t, nameKey(a), nameKey(c))
	assert.NotContains(t, nameKey(a), "groceries")
	assert.Len(t, nameKey(a), 64)
}

func TestHandlers_SealedStreamsStayOpaque(t *testing.T) {
	// The registry streams created along the way must never contain a
	// normalized plaintext name either.
	f := newFixture()
	ownerID := f.mustSignUp(t, "alice@example.com")
	f.mustCreateEnvelope(t, ownerID, "Groceries")
	ctx := context.Background()

	scope := registry.NamesStreamID(shared.AccountID(ownerID))
	stream, err := f.store.Load(ctx, scope)
	require.NoError(t, err)
	for _, record := range stream.Collect() {
		assert.False(t, strings.Contains(strings.ToLower(string(record.Payload)), "groceries"))
	}
}
