// Package money holds the currency helpers shared by the reconciliation core.
// Amounts are decimal values in currency units; rounding to two places happens
// only when a value is presented, never while accumulating.
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotNumeric     = errors.New("amount is not numeric")
	ErrNegative       = errors.New("amount must not be negative")
	ErrPercentOutside = errors.New("percentage must be between 0 and 100")
)

// Places is the number of decimal places used for presentation.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Sum adds the values without intermediate rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Round rounds half away from zero to two decimal places.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(Places)
}

func Format(v decimal.Decimal) string {
	return v.StringFixed(Places)
}

// ApplyDiscount returns original reduced by percent (0..100).
func ApplyDiscount(original decimal.Decimal, percent decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidPercent(percent); err != nil {
		return decimal.Zero, err
	}
	if original.IsNegative() {
		return decimal.Zero, ErrNegative
	}
	if percent.IsZero() {
		return original, nil
	}
	return original.Mul(hundred.Sub(percent)).Div(hundred), nil
}

// DiscountAmount is the part of original removed by percent.
func DiscountAmount(original decimal.Decimal, percent decimal.Decimal) (decimal.Decimal, error) {
	discounted, err := ApplyDiscount(original, percent)
	if err != nil {
		return decimal.Zero, err
	}
	return original.Sub(discounted), nil
}

func ValidPercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return ErrPercentOutside
	}
	return nil
}

// Parse converts a textual amount. Blank, NaN, infinite and otherwise
// non-numeric input yields ErrNotNumeric.
func Parse(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, ErrNotNumeric
	}
	switch strings.ToLower(strings.TrimLeft(trimmed, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.Zero, ErrNotNumeric
	}
	v, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrNotNumeric
	}
	return v, nil
}

// ParseOptional behaves like Parse but treats blank input as zero.
func ParseOptional(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return Parse(raw)
}

// FromFloat guards decimal.NewFromFloat, which panics on NaN and infinities.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrNotNumeric
	}
	return decimal.NewFromFloat(f), nil
}

func NonNegative(v decimal.Decimal) error {
	if v.IsNegative() {
		return ErrNegative
	}
	return nil
}
