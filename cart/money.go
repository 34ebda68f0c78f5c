package cart

import (
	"fmt"
	"math"
)

// Money is an amount in cents. All cart figures are computed in cents so that
// derived totals add up exactly.
type Money int64

// MaxPrice is the largest unit price a line item may carry. It keeps cent
// amounts of realistic carts well inside int64.
const MaxPrice = 1e9

// FromFloat converts a decimal price to cents, rounding half away from zero.
func FromFloat(v float64) Money {
	return Money(math.Round(v * 100))
}

// Float returns the amount as a decimal value.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String renders the amount fixed-point with exactly two decimals and no grouping.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Format renders the amount the way the storefront displays it, e.g. "$12.50".
func (m Money) Format() string {
	return "$" + m.String()
}
