package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/crypto"
	"github.com/budget-hub/budget-envelope-hub/internal/infrastructure/persistence/memory"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

const (
	envelopeID = "11111111-1111-1111-1111-111111111111"
	ownerID    = "22222222-2222-2222-2222-222222222222"
	strangerID = "33333333-3333-3333-3333-333333333333"
)

var t0 = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// seedEnvelope stores a view row with the name sealed under the owner's
// key, the way the projector would have written it.
func seedEnvelope(t *testing.T, views *memory.EnvelopeViewRepository, keys crypto.KeyRepository, envID, owner, name string, balance int64) {
	t.Helper()
	ctx := context.Background()

	key, err := keys.Get(ctx, owner)
	require.NoError(t, err)
	sealed, err := crypto.Seal(key.Bytes, name)
	require.NoError(t, err)

	require.NoError(t, views.Upsert(ctx, projection.EnvelopeView{
		EnvelopeID:     envID,
		OwnerID:        owner,
		Name:           sealed,
		TargetedAmount: 50000,
		CurrentAmount:  balance,
		Currency:       "EUR",
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}))
}

func TestGetEnvelope(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	keys := crypto.NewMemoryKeyRepository()
	ctx := context.Background()
	_, err := keys.Create(ctx, ownerID)
	require.NoError(t, err)
	seedEnvelope(t, views, keys, envelopeID, ownerID, "Groceries", 12345)

	handler := NewGetEnvelopeHandler(views, keys)
	dto, err := handler.Handle(ctx, GetEnvelopeQuery{EnvelopeID: envelopeID, ActorID: ownerID})
	require.NoError(t, err)

	assert.Equal(t, "Groceries", dto.Name)
	assert.Equal(t, "123.45", dto.CurrentAmount)
	assert.Equal(t, "500.00", dto.TargetedAmount)
	assert.Equal(t, "EUR", dto.Currency)
}

func TestGetEnvelope_OwnershipViolation(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	keys := crypto.NewMemoryKeyRepository()
	ctx := context.Background()
	_, err := keys.Create(ctx, ownerID)
	require.NoError(t, err)
	seedEnvelope(t, views, keys, envelopeID, ownerID, "Groceries", 0)

	handler := NewGetEnvelopeHandler(views, keys)
	_, err = handler.Handle(ctx, GetEnvelopeQuery{EnvelopeID: envelopeID, ActorID: strangerID})
	assert.ErrorIs(t, err, shared.ErrOwnershipViolation)
}

func TestGetEnvelope_NotFound(t *testing.T) {
	handler := NewGetEnvelopeHandler(memory.NewEnvelopeViewRepository(), crypto.NewMemoryKeyRepository())
	_, err := handler.Handle(context.Background(), GetEnvelopeQuery{EnvelopeID: envelopeID, ActorID: ownerID})
	assert.ErrorIs(t, err, shared.ErrViewNotFound)
}

func TestGetEnvelope_RedactedAfterErasure(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	keys := crypto.NewMemoryKeyRepository()
	ctx := context.Background()
	_, err := keys.Create(ctx, ownerID)
	require.NoError(t, err)
	seedEnvelope(t, views, keys, envelopeID, ownerID, "Groceries", 500)

	require.NoError(t, keys.Destroy(ctx, ownerID))

	handler := NewGetEnvelopeHandler(views, keys)
	dto, err := handler.Handle(ctx, GetEnvelopeQuery{EnvelopeID: envelopeID, ActorID: ownerID})
	require.NoError(t, err)
	assert.Equal(t, crypto.RedactedPlaceholder, dto.Name)
	// Non-personal fields survive the erasure.
	assert.Equal(t, "5.00", dto.CurrentAmount)
}

func TestListEnvelopes(t *testing.T) {
	views := memory.NewEnvelopeViewRepository()
	keys := crypto.NewMemoryKeyRepository()
	ctx := context.Background()
	_, err := keys.Create(ctx, ownerID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("11111111-1111-1111-1111-11111111111%d", i)
		seedEnvelope(t, views, keys, id, ownerID, fmt.Sprintf("Envelope %d", i), int64(i*100))
	}

	handler := NewListEnvelopesHandler(views, keys)
	dtos, err := handler.Handle(ctx, ListEnvelopesQuery{OwnerID: ownerID})
	require.NoError(t, err)
	require.Len(t, dtos, 3)
	names := []string{dtos[0].Name, dtos[1].Name, dtos[2].Name}
	assert.ElementsMatch(t, []string{"Envelope 0", "Envelope 1", "Envelope 2"}, names)

	limited, err := handler.Handle(ctx, ListEnvelopesQuery{OwnerID: ownerID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetAccount(t *testing.T) {
	views := memory.NewAccountViewRepository()
	keys := crypto.NewMemoryKeyRepository()
	ctx := context.Background()

	key, err := keys.Create(ctx, ownerID)
	require.NoError(t, err)
	sealedEmail, err := crypto.Seal(key.Bytes, "alice@example.com")
	require.NoError(t, err)
	sealedName, err := crypto.Seal(key.Bytes, "Alice")
	require.NoError(t, err)

	require.NoError(t, views.Upsert(ctx, projection.AccountView{
		AccountID:         ownerID,
		SealedEmail:       sealedEmail,
		SealedDisplayName: sealedName,
		Language:          "en",
		CreatedAt:         t0,
		UpdatedAt:         t0,
	}))

	handler := NewGetAccountHandler(views, keys)
	dto, err := handler.Handle(ctx, GetAccountQuery{AccountID: ownerID, ActorID: ownerID})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", dto.Email)
	assert.Equal(t, "Alice", dto.DisplayName)

	// Accounts are self-read only.
	_, err = handler.Handle(ctx, GetAccountQuery{AccountID: ownerID, ActorID: strangerID})
	assert.ErrorIs(t, err, shared.ErrOwnershipViolation)
}

func TestGetHistory_FilterValidation(t *testing.T) {
	handler := NewGetHistoryHandler(memory.NewEventStore())
	ctx := context.Background()

	// No filter.
	_, err := handler.Handle(ctx, GetHistoryQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	// Two filters.
	_, err = handler.Handle(ctx, GetHistoryQuery{StreamID: "s", UserID: "u"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	// Half a window.
	_, err = handler.Handle(ctx, GetHistoryQuery{From: t0})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	// Inverted window.
	_, err = handler.Handle(ctx, GetHistoryQuery{From: t0, To: t0.Add(-time.Hour)})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGetHistory(t *testing.T) {
	store := memory.NewEventStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "stream-1", []shared.Event{
		shared.NewBaseEvent(shared.EventEnvelopeCredited, "stream-1", ownerID, "", t0),
		shared.NewBaseEvent(shared.EventEnvelopeDebited, "stream-1", ownerID, "", t0.Add(time.Minute)),
	}, 0)
	require.NoError(t, err)

	handler := NewGetHistoryHandler(store)

	byStream, err := handler.Handle(ctx, GetHistoryQuery{StreamID: "stream-1"})
	require.NoError(t, err)
	assert.Len(t, byStream, 2)

	byType, err := handler.Handle(ctx, GetHistoryQuery{EventType: string(shared.EventEnvelopeDebited)})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, 2, byType[0].StreamVersion)

	byUser, err := handler.Handle(ctx, GetHistoryQuery{UserID: ownerID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	byWindow, err := handler.Handle(ctx, GetHistoryQuery{From: t0, To: t0})
	require.NoError(t, err)
	assert.Len(t, byWindow, 1)
}
