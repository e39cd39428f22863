package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("1234.56")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), m.Cents())
	assert.Equal(t, "1234.56", m.String())

	m, err = ParseMoney("0.5")
	require.NoError(t, err)
	assert.Equal(t, int64(50), m.Cents())
	assert.Equal(t, "0.50", m.String())

	m, err = ParseMoney("7")
	require.NoError(t, err)
	assert.Equal(t, int64(700), m.Cents())

	m, err = ParseMoney("-3.01")
	require.NoError(t, err)
	assert.Equal(t, int64(-301), m.Cents())
	assert.Equal(t, "-3.01", m.String())
}

func TestParseMoney_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1.234", "1,50", "1.2.3"} {
		_, err := ParseMoney(input)
		assert.Error(t, err, "input %q", input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestMoney_ExactArithmetic(t *testing.T) {
	// 0.10 + 0.20 must be exactly 0.30 in integer cents.
	a := MustParseMoney("0.10")
	b := MustParseMoney("0.20")
	assert.Equal(t, MustParseMoney("0.30"), a.Add(b))

	balance := MustParseMoney("100.00")
	balance = balance.Add(MustParseMoney("33.33"))
	balance = balance.Sub(MustParseMoney("33.33"))
	assert.Equal(t, MustParseMoney("100.00"), balance)
}

func TestEnvelopeName_Normalized(t *testing.T) {
	name, err := NewEnvelopeName("  Groceries ")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", name.String())
	assert.Equal(t, "groceries", name.Normalized())

	other, err := NewEnvelopeName("GROCERIES")
	require.NoError(t, err)
	assert.Equal(t, name.Normalized(), other.Normalized())
}

func TestEnvelopeName_Bounds(t *testing.T) {
	_, err := NewEnvelopeName("   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'x'
	}
	_, err = NewEnvelopeName(string(long))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewCurrency(t *testing.T) {
	c, err := NewCurrency("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, c)

	c, err = NewCurrency("usd")
	require.NoError(t, err)
	assert.Equal(t, Currency("USD"), c)

	_, err = NewCurrency("EURO")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError("envelope", "Debit", ErrInvalidOperation, "insufficient funds")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.NotErrorIs(t, err, ErrOwnershipViolation)
	assert.True(t, IsInvalidOperation(err))

	wrapped := WrapError("eventstore", "Append", ErrConcurrencyConflict, "version mismatch", err)
	assert.True(t, IsConcurrencyConflict(wrapped))
}

func TestRecorder_LoadedVersion(t *testing.T) {
	var r Recorder

	// Three historical events folded, then two new ones raised.
	r.Applied()
	r.Applied()
	r.Applied()
	assert.Equal(t, 3, r.Version())
	assert.Equal(t, 3, r.LoadedVersion())

	r.Record(NewBaseEvent(EventEnvelopeCredited, "e1", "u1", "", time.Now()))
	r.Record(NewBaseEvent(EventEnvelopeCredited, "e1", "u1", "", time.Now()))
	assert.Equal(t, 5, r.Version())
	assert.Equal(t, 3, r.LoadedVersion())
	assert.Len(t, r.Uncommitted(), 2)

	r.Clear()
	assert.Empty(t, r.Uncommitted())
	assert.Equal(t, 5, r.Version())
	assert.Equal(t, 5, r.LoadedVersion())
}

func TestStream_SinglePass(t *testing.T) {
	records := []StoredEvent{
		{StreamID: "s", StreamVersion: 1},
		{StreamID: "s", StreamVersion: 2},
		{StreamID: "s", StreamVersion: 3},
	}
	stream := NewStream(records)
	assert.Equal(t, 3, stream.Len())

	first, ok := stream.Next()
	require.True(t, ok)
	assert.Equal(t, 1, first.StreamVersion)

	rest := stream.Collect()
	assert.Len(t, rest, 2)

	_, ok = stream.Next()
	assert.False(t, ok)
	assert.Empty(t, stream.Collect())
}
