// Package money provides a fixed-precision decimal type for prices and
// credits, avoiding float64 comparisons at threshold boundaries.
package money

import (
	"fmt"
	"math"
)

// scale is the number of integer cents per dollar (two fractional digits).
const scale = 100

// Decimal is a fixed-point value with two fractional digits, stored as the
// number of hundredths (cents). Zero value is 0.00.
type Decimal int64

// Zero is the additive identity.
const Zero Decimal = 0

// FromFloat rounds a float64 to the nearest cent and returns a Decimal.
// NaN and Inf inputs are treated as zero to keep downstream arithmetic total.
func FromFloat(f float64) Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero
	}
	return Decimal(math.Round(f * scale))
}

// FromCents constructs a Decimal directly from an integer cent count.
func FromCents(cents int64) Decimal {
	return Decimal(cents)
}

// Float64 converts back to a float64 for display or math that tolerates
// rounding error (never for threshold comparisons).
func (d Decimal) Float64() float64 {
	return float64(d) / scale
}

// Cents returns the underlying integer hundredths.
func (d Decimal) Cents() int64 {
	return int64(d)
}

// Add returns d+o.
func (d Decimal) Add(o Decimal) Decimal {
	return d + o
}

// Sub returns d-o.
func (d Decimal) Sub(o Decimal) Decimal {
	return d - o
}

// MulInt returns d*n, exact for integer n.
func (d Decimal) MulInt(n int) Decimal {
	return d * Decimal(n)
}

// Cmp returns -1, 0, or 1 as d is less than, equal to, or greater than o.
func (d Decimal) Cmp(o Decimal) int {
	switch {
	case d < o:
		return -1
	case d > o:
		return 1
	default:
		return 0
	}
}

// GTE reports whether d >= o, the threshold-predicate comparison used
// throughout the credit evaluator and quote monitor.
func (d Decimal) GTE(o Decimal) bool {
	return d >= o
}

// Clamp returns d bounded to [lo, hi].
func Clamp(d, lo, hi Decimal) Decimal {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// String renders the value as a fixed two-decimal string, e.g. "4.60".
func (d Decimal) String() string {
	neg := d < 0
	v := int64(d)
	if neg {
		v = -v
	}
	whole := v / scale
	frac := v % scale
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
}
