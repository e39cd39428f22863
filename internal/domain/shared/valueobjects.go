package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// EnvelopeID identifies a budget envelope aggregate (UUID format).
type EnvelopeID string

// IsValid checks if the envelope ID is a valid UUID.
func (id EnvelopeID) IsValid() bool {
	return uuidRegex.MatchString(string(id))
}

// String returns the string representation.
func (id EnvelopeID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty.
func (id EnvelopeID) IsEmpty() bool {
	return id == ""
}

// NewEnvelopeID creates a new EnvelopeID with validation.
func NewEnvelopeID(id string) (EnvelopeID, error) {
	eid := EnvelopeID(strings.ToLower(strings.TrimSpace(id)))
	if !eid.IsValid() {
		return "", NewDomainError("shared", "NewEnvelopeID", ErrInvalidID, "invalid envelope ID format")
	}
	return eid, nil
}

// AccountID identifies a user account aggregate (UUID format).
type AccountID string

// IsValid checks if the account ID is a valid UUID.
func (id AccountID) IsValid() bool {
	return uuidRegex.MatchString(string(id))
}

// String returns the string representation.
func (id AccountID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty.
func (id AccountID) IsEmpty() bool {
	return id == ""
}

// NewAccountID creates a new AccountID with validation.
func NewAccountID(id string) (AccountID, error) {
	aid := AccountID(strings.ToLower(strings.TrimSpace(id)))
	if !aid.IsValid() {
		return "", NewDomainError("shared", "NewAccountID", ErrInvalidID, "invalid account ID format")
	}
	return aid, nil
}

// RequestID is the correlation id carried by every command so that a
// re-submitted command can be recognized downstream.
type RequestID string

// IsValid checks if the request ID is a valid UUID.
func (id RequestID) IsValid() bool {
	return uuidRegex.MatchString(string(id))
}

// String returns the string representation.
func (id RequestID) String() string {
	return string(id)
}

// ═══════════════════════════════════════════════════════════════════════════
// Envelope Name Value Object
// ═══════════════════════════════════════════════════════════════════════════

// EnvelopeName is the user-facing name of a budget envelope.
type EnvelopeName string

const maxEnvelopeNameLength = 50

// IsValid checks that the name is non-empty and within length bounds.
func (n EnvelopeName) IsValid() bool {
	s := string(n)
	return len(s) >= 1 && len(s) <= maxEnvelopeNameLength
}

// String returns the string representation.
func (n EnvelopeName) String() string {
	return string(n)
}

// Normalized returns the registry key form of the name: trimmed and
// lower-cased, so that "Groceries" and "groceries " collide.
func (n EnvelopeName) Normalized() string {
	return strings.ToLower(strings.TrimSpace(string(n)))
}

// NewEnvelopeName creates a new EnvelopeName with validation.
func NewEnvelopeName(name string) (EnvelopeName, error) {
	n := EnvelopeName(strings.TrimSpace(name))
	if !n.IsValid() {
		return "", NewDomainError("shared", "NewEnvelopeName", ErrInvalidInput, "envelope name must be 1-50 characters")
	}
	return n, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Money Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Money represents a monetary amount in minor units (cents). Integer cents
// keep credit/debit round trips exact; no floating point is involved anywhere.
type Money int64

// MoneyZero is the zero amount.
const MoneyZero Money = 0

var moneyRegex = regexp.MustCompile(`^(-?)(\d+)(?:\.(\d{1,2}))?$`)

// ParseMoney parses a decimal string like "1234.56" into cents.
func ParseMoney(s string) (Money, error) {
	m := moneyRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, NewDomainError("shared", "ParseMoney", ErrInvalidInput, fmt.Sprintf("invalid amount format: %q", s))
	}

	units, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, NewDomainError("shared", "ParseMoney", ErrInvalidInput, fmt.Sprintf("amount out of range: %q", s))
	}

	cents := int64(0)
	if m[3] != "" {
		frac := m[3]
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}

	total := units*100 + cents
	if m[1] == "-" {
		total = -total
	}
	return Money(total), nil
}

// MustParseMoney parses a decimal string and panics on failure.
// Intended for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns the sum of two amounts.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns the difference of two amounts.
func (m Money) Sub(other Money) Money {
	return m - other
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m < 0
}

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool {
	return m > 0
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return int64(m)
}

// String formats the amount as a decimal string with two fraction digits.
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ═══════════════════════════════════════════════════════════════════════════
// Currency Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Currency is a three-letter currency code.
type Currency string

// DefaultCurrency is assumed when a command does not specify one.
const DefaultCurrency Currency = "EUR"

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// IsValid checks the code is exactly three upper-case letters.
func (c Currency) IsValid() bool {
	return currencyRegex.MatchString(string(c))
}

// String returns the string representation.
func (c Currency) String() string {
	return string(c)
}

// NewCurrency creates a Currency with validation, defaulting when empty.
func NewCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	c := Currency(code)
	if !c.IsValid() {
		return "", NewDomainError("shared", "NewCurrency", ErrInvalidInput, fmt.Sprintf("invalid currency code: %q", code))
	}
	return c, nil
}
