// Package primitives - Centralized pricing math
// Tariff tables declare rates, not do math.
// All stepped-rate and surcharge arithmetic flows through these primitives.
package primitives

import "math"

// Unbounded is the upper limit of a final, open-ended tier.
var Unbounded = math.Inf(1)

// PricingTier represents a tiered pricing level
type PricingTier struct {
	From     float64 // Lower limit, inclusive of the first unit above it
	UpTo     float64 // Upper limit (Unbounded = open-ended)
	UnitRate float64 // Rate per unit in this tier
}

// IsUnbounded reports whether the tier has no upper limit
func (t PricingTier) IsUnbounded() bool {
	return math.IsInf(t.UpTo, 1)
}

// Width is the quantity the tier spans; +Inf when unbounded
func (t PricingTier) Width() float64 {
	return t.UpTo - t.From
}

// TierLine is the charge for the part of a quantity falling into one tier
type TierLine struct {
	Tier     PricingTier `json:"-"`
	From     float64     `json:"from"`
	UpTo     *float64    `json:"up_to,omitempty"`
	Quantity float64     `json:"quantity"`
	UnitRate float64     `json:"unit_rate"`
	Amount   float64     `json:"amount"`
}

// Surcharge is a percentage applied multiplicatively on a running total
type Surcharge struct {
	Name string  `json:"name"`
	Rate float64 `json:"rate"` // 0.06 for 6%
}

// SurchargeLine records one surcharge application
type SurchargeLine struct {
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}
