package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds to cents, half away from zero (half-up for the non-negative amounts we handle).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToMinorUnits converts a currency amount to cents for processors that bill in minor units.
func ToMinorUnits(d decimal.Decimal) int64 {
	return Round2(d).Mul(hundred).IntPart()
}

// FromMinorUnits converts cents back to a currency amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func minDecimal(a decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	out := a
	for _, d := range rest {
		if d.LessThan(out) {
			out = d
		}
	}
	return out
}
