// Package core provides money parsing and handling utilities.
//
// This file contains the Money and Quantity value types. Both wrap
// shopspring/decimal and serialize as bare JSON numbers so persisted
// ledgers keep their numeric shape.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type (
	// Money is a non-negative amount in the ledger's single implicit currency.
	Money struct {
		amount decimal.Decimal
	}

	// Quantity is an optional measured amount, e.g. liters of water.
	Quantity struct {
		Amount decimal.Decimal
		Valid  bool
	}
)

func NewMoney(units int64) Money {
	return Money{amount: decimal.NewFromInt(units)}
}

func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{amount: d}
}

// ParseMoney converts user input to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// and malformed values are rejected; zero is allowed since an unrented unit may
// carry no rent.
//
// Examples:
//
//	ParseMoney("1500")    -> 1500, nil
//	ParseMoney("1500,50") -> 1500.5, nil
//	ParseMoney("-1")      -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{amount: d}, nil
}

func (m Money) Decimal() decimal.Decimal { return m.amount }
func (m Money) Add(o Money) Money        { return Money{amount: m.amount.Add(o.amount)} }
func (m Money) Sub(o Money) Money        { return Money{amount: m.amount.Sub(o.amount)} }
func (m Money) IsZero() bool             { return m.amount.IsZero() }
func (m Money) IsNegative() bool         { return m.amount.IsNegative() }
func (m Money) Cmp(o Money) int          { return m.amount.Cmp(o.amount) }
func (m Money) Equal(o Money) bool       { return m.amount.Equal(o.amount) }
func (m Money) String() string           { return m.amount.String() }

// Float64 returns the amount for display purposes only.
func (m Money) Float64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// Percent returns m as a whole percentage of total, rounded half away from
// zero. A zero total yields 0.
func (m Money) Percent(total Money) int64 {
	if total.amount.IsZero() {
		return 0
	}
	return m.amount.Mul(hundred).Div(total.amount).Round(0).IntPart()
}

// Format renders the amount the way the UI shows it: "$1,500" with no decimals.
func (m Money) Format() string {
	s := m.amount.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	return m.amount.UnmarshalJSON(b)
}

func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.amount.String()), nil
}

func (m *Money) UnmarshalText(b []byte) error {
	return m.amount.UnmarshalText(b)
}

// NewQuantity returns a valid quantity.
func NewQuantity(d decimal.Decimal) Quantity {
	return Quantity{Amount: d, Valid: true}
}

func (q Quantity) String() string {
	if !q.Valid {
		return ""
	}
	return q.Amount.String()
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.Valid {
		return []byte("null"), nil
	}
	return []byte(q.Amount.String()), nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*q = Quantity{}
		return nil
	}
	if err := q.Amount.UnmarshalJSON(b); err != nil {
		return err
	}
	q.Valid = true
	return nil
}

func (q Quantity) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *Quantity) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*q = Quantity{}
		return nil
	}
	if err := q.Amount.UnmarshalText(b); err != nil {
		return err
	}
	q.Valid = true
	return nil
}
