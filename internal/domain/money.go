package domain

import (
	"github.com/shopspring/decimal"
)

// QuantizedAmount is a currency amount expressed as an integer count of
// minor units (cents). All pipeline arithmetic stays in integers; the only
// place a fractional value can appear is inside MulQty/DivQty, where the
// exact decimal product is rounded half-up before it collapses back to an
// integer. Negative amounts are legal values; callers decide whether a
// negative price makes sense.
type QuantizedAmount int64

const minorUnitsPerMajor = 100

// Add returns a + b.
func (a QuantizedAmount) Add(b QuantizedAmount) QuantizedAmount {
	return a + b
}

// Cmp compares two amounts: -1 if a < b, 0 if equal, 1 if a > b.
func (a QuantizedAmount) Cmp(b QuantizedAmount) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MulQty multiplies the amount by a decimal quantity and quantizes the
// exact product back to minor units, rounding half away from zero
// (0.5 -> 1, 1.5 -> 2, -0.5 -> -1).
func (a QuantizedAmount) MulQty(qty decimal.Decimal) QuantizedAmount {
	product := decimal.NewFromInt(int64(a)).Mul(qty)
	return QuantizedAmount(product.Round(0).IntPart())
}

// DivQty divides the amount by a decimal quantity with the same half-up
// rounding. A zero quantity returns the amount unchanged so that a unit
// price back-computed from a total never divides by zero.
func (a QuantizedAmount) DivQty(qty decimal.Decimal) QuantizedAmount {
	if qty.IsZero() {
		return a
	}
	// A single DivRound quantizes the exact quotient. Rounding an
	// intermediate digit first would push 0.45 -> 0.5 -> 1.
	return QuantizedAmount(decimal.NewFromInt(int64(a)).DivRound(qty, 0).IntPart())
}

// Major converts to the decimal major-unit representation (10050 -> 100.50).
func (a QuantizedAmount) Major() decimal.Decimal {
	return decimal.NewFromInt(int64(a)).Div(decimal.NewFromInt(minorUnitsPerMajor))
}

// FromMajor converts a decimal major-unit value to minor units, rounding
// half away from zero when the value carries sub-minor-unit precision.
func FromMajor(v decimal.Decimal) QuantizedAmount {
	return QuantizedAmount(v.Mul(decimal.NewFromInt(minorUnitsPerMajor)).Round(0).IntPart())
}

// Int64 exposes the raw minor-unit count for serialization.
func (a QuantizedAmount) Int64() int64 {
	return int64(a)
}
