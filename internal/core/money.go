// Package core provides money parsing and handling utilities.
//
// Amounts are always held in minor units (cents). Decimal conversion goes
// through shopspring/decimal so display and parsing never touch float math.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Negative values are rejected: the sign of a transaction lives in its type.
// Zero is accepted.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,345") -> 1235, nil
//	ParseDecimalToCents("-1") -> 0, ErrInvalidAmount
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// NewMoneyFromString parses a decimal amount into Money.
func NewMoneyFromString(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two fractional digits, e.g. "-12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// AddChecked is Add that fails with ErrBalanceOverflow instead of wrapping.
func (m Money) AddChecked(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return m, fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, m.Cents, o.Cents)
	}
	return Money{Cents: sum}, nil
}

// SubChecked is Sub that fails with ErrBalanceOverflow instead of wrapping.
func (m Money) SubChecked(o Money) (Money, error) {
	diff := m.Cents - o.Cents
	if (o.Cents > 0 && diff > m.Cents) || (o.Cents < 0 && diff < m.Cents) {
		return m, fmt.Errorf("%w: %d - %d", ErrBalanceOverflow, m.Cents, o.Cents)
	}
	return Money{Cents: diff}, nil
}
