// Package money provides monetary helpers for escrow fund arithmetic.
//
// Amounts are decimal values denominated in a single currency per account.
// All fund movements round to the smallest currency unit (cents) using
// half-up rounding, so repeated computation of the same release amount is
// deterministic and sums are exact.
package money

import (
	"github.com/shopspring/decimal"
)

// Zero is the additive identity for amounts.
var Zero = decimal.Zero

var oneHundred = decimal.NewFromInt(100)

// RoundToCent rounds an amount to two decimal places, half away from zero.
func RoundToCent(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// PercentOf resolves a percentage of a total, rounded to the cent.
// PercentOf(400000, 25) == 100000.00.
func PercentOf(total decimal.Decimal, percentage decimal.Decimal) decimal.Decimal {
	return RoundToCent(total.Mul(percentage).Div(oneHundred))
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}

// Parse parses a decimal string amount ("40000.00").
func Parse(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}
