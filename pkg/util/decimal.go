package util

import "github.com/shopspring/decimal"

// Round2 rounds half away from zero to two decimal places for user-facing prices.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
