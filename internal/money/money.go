// Package money holds the fixed-precision amount type used for every
// financial value in the core. Amounts are integer minor units (cents).
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units. Never a binary float.
type Money int64

const Zero Money = 0

var ErrInvalidAmount = errors.New("invalid money amount")

var half = decimal.New(5, -1)

func FromCents(cents int64) Money {
	return Money(cents)
}

// Parse reads a major-unit decimal string such as "120.50". Anything past
// the second fractional digit is rounded half-up.
func Parse(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return FromDecimal(d), nil
}

// FromDecimal converts a major-unit decimal into minor units, rounding
// half-up (toward +inf on an exact half).
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Add(half).Floor().IntPart())
}

func (m Money) Cents() int64 { return int64(m) }

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }

// Times multiplies by an item quantity; exact in minor units.
func (m Money) Times(qty int64) Money { return Money(int64(m) * qty) }

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }

// RatioPercent returns m as a percentage of base with two decimals,
// rounded half-up. A zero base yields zero.
func (m Money) RatioPercent(base Money) decimal.Decimal {
	if base == 0 {
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(int64(m)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(base)))
	return ratio.Shift(2).Add(half).Floor().Shift(-2)
}

func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// String renders major units with two decimals, e.g. "-10.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
