package types

import (
	"fmt"
	"math"
)

// Currency is the exact scaled fixed-point value stored in a 'Y' field:
// an int64 count of 1/10000 units. It is never a floating approximation.
type Currency int64

// CurrencyScale is the fixed denominator of a Currency value.
const CurrencyScale = 10000

// CurrencyFromUnits builds a Currency from whole units.
func CurrencyFromUnits(units int64) Currency {
	return Currency(units * CurrencyScale)
}

// CurrencyFromFloat rounds f to the nearest 1/10000 unit.
// Values outside the representable range return an error.
func CurrencyFromFloat(f float64) (Currency, error) {
	scaled := math.Round(f * CurrencyScale)
	if scaled >= math.MaxInt64 || scaled <= math.MinInt64 || math.IsNaN(scaled) {
		return 0, fmt.Errorf("%w: currency value %v out of range", ErrInvalidOperation, f)
	}
	return Currency(scaled), nil
}

// Raw returns the underlying scaled integer.
func (c Currency) Raw() int64 {
	return int64(c)
}

// Float64 returns an approximate floating value, for display only.
func (c Currency) Float64() float64 {
	return float64(c) / CurrencyScale
}

func (c Currency) String() string {
	whole := int64(c) / CurrencyScale
	frac := int64(c) % CurrencyScale
	sign := ""
	if frac < 0 {
		frac = -frac
		if whole == 0 {
			sign = "-"
		}
	}
	return fmt.Sprintf("%s%d.%04d", sign, whole, frac)
}
