package model

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of decimal places between major and minor
// currency units.
const MinorUnitExponent = 2

// FormatMoney renders minor units as a fixed two-decimal amount ("40.00").
func FormatMoney(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}

// ToMinorUnits converts a major-unit decimal into minor units, rounding half
// away from zero.
func ToMinorUnits(major decimal.Decimal) int64 {
	return major.Shift(MinorUnitExponent).Round(0).IntPart()
}
