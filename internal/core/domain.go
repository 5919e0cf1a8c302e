package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

type (
	TransactionType string

	// Account is a named balance-holding bucket. Balance is kept in minor units.
	Account struct {
		ID      int64
		Name    string
		Icon    string
		Balance Money
	}

	Category struct {
		ID   int64
		Name string
		Icon string // glyph identifier, opaque to storage
	}

	Transaction struct {
		ID         int64
		AccountID  int64
		CategoryID int64
		Type       TransactionType
		Amount     Money
		Note       string
		CreatedAt  time.Time
	}

	// TransactionInput is what collaborators hand over when recording a transaction.
	// Note and CreatedAt are optional.
	TransactionInput struct {
		AccountID  int64
		CategoryID int64
		Type       TransactionType
		Amount     Money
		Note       string
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyIcon     = errors.New("empty icon")
	ErrInvalidBucket = errors.New("invalid bucket")

	// Rejected transaction inputs are constraint violations, whether caught here or by the store.
	ErrInvalidType     = fmt.Errorf("%w: invalid transaction type", ErrConstraintViolation)
	ErrNegativeAmount  = fmt.Errorf("%w: negative amount", ErrConstraintViolation)
	ErrBalanceOverflow = fmt.Errorf("%w: balance out of range", ErrConstraintViolation)

	// ErrStorageUnavailable means the embedded store could not be opened or is closed.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConstraintViolation means a write referenced a missing row or broke a column check.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrNotFound is returned by lookups. Deletes and balance updates treat a missing id as a no-op.
	ErrNotFound = errors.New("not found")
	// ErrAggregationCoercion means a stored aggregate could not be read as a number.
	ErrAggregationCoercion = errors.New("aggregate is not numeric")
)

// Valid reports whether t is one of the two known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case Credit, Debit:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType accepts "credit" or "debit" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Apply returns the balance after applying a transaction of type t and amount m.
// A result outside int64 minor units is ErrBalanceOverflow.
func (t TransactionType) Apply(balance, m Money) (Money, error) {
	if t == Credit {
		return balance.AddChecked(m)
	}
	return balance.SubChecked(m)
}

// Revert undoes what Apply did.
func (t TransactionType) Revert(balance, m Money) (Money, error) {
	if t == Credit {
		return balance.SubChecked(m)
	}
	return balance.AddChecked(m)
}

func (in TransactionInput) Validate() error {
	if in.AccountID <= 0 || in.CategoryID <= 0 {
		return ErrConstraintViolation
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if in.Amount.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// WithDefaults fills CreatedAt with now when it was left empty.
func (in TransactionInput) WithDefaults(now time.Time) TransactionInput {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.CreatedAt = in.CreatedAt.UTC()
	return in
}

// ValidateLabel checks the name/icon pair shared by accounts and categories.
func ValidateLabel(name, icon string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(icon) == "" {
		return ErrEmptyIcon
	}
	return nil
}

// ValidateYearMonth checks a "YYYY-MM" bucket key.
func ValidateYearMonth(s string) error {
	if _, err := time.Parse("2006-01", s); err != nil {
		return ErrInvalidBucket
	}
	return nil
}

// ValidateYear checks a calendar year usable as a bucket filter.
func ValidateYear(year int) error {
	if year < 1970 || year > 9999 {
		return ErrInvalidBucket
	}
	return nil
}
