// Package types - Money types
package types

import "github.com/shopspring/decimal"

// Currency represents a currency code
type Currency string

// CurrencyMYR is the only currency bills are computed in.
const CurrencyMYR Currency = "MYR"

// String returns the string representation
func (c Currency) String() string {
	return string(c)
}

// Symbol returns the display prefix for the currency
func (c Currency) Symbol() string {
	if c == CurrencyMYR {
		return "RM"
	}
	return string(c)
}

// DisplayPlaces is the number of decimals amounts are shown with.
// Stored amounts keep full float64 precision.
const DisplayPlaces = 2

// RoundForDisplay rounds an amount half away from zero to DisplayPlaces.
func RoundForDisplay(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(DisplayPlaces)
}

// FormatAmount renders an amount as e.g. "RM 12.34"
func FormatAmount(amount float64) string {
	return CurrencyMYR.Symbol() + " " + RoundForDisplay(amount).StringFixed(DisplayPlaces)
}
