// Package numeric provides decimal rounding helpers used across adapters
// and strategies.
package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CeilTo rounds d up to the given number of fractional decimals.
func CeilTo(d decimal.Decimal, decimals int32) decimal.Decimal {
	return d.RoundCeil(decimals)
}

// FloorTo rounds d down to the given number of fractional decimals.
func FloorTo(d decimal.Decimal, decimals int32) decimal.Decimal {
	return d.RoundFloor(decimals)
}

// RoundTo rounds d half away from zero to the given number of fractional
// decimals.
func RoundTo(d decimal.Decimal, decimals int32) decimal.Decimal {
	return d.Round(decimals)
}

// IsZeroString reports whether the trimmed decimal string represents zero.
// Unparseable strings are not zero.
func IsZeroString(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return false
	}
	return d.IsZero()
}
