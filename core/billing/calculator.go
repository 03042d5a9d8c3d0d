// Package billing computes utility charges from tariff tables.
// Every function here is pure: the same usage and selector always give the
// same amount, and a Calculator may be shared between goroutines.
package billing

import (
	"fmt"
	"strings"

	"utility-bill/core/pricing/primitives"
	"utility-bill/core/tariff"
	"utility-bill/core/types"
	"utility-bill/internal/errors"
)

// Breakdown explains how an amount was reached
type Breakdown struct {
	Utility  types.UtilityType `json:"utility"`
	Selector string            `json:"selector"`
	Provider string            `json:"provider"`

	// Usage is the entered quantity; Quantity is Usage in billing units
	Usage    float64 `json:"usage"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`

	Tiers       []primitives.TierLine      `json:"tiers"`
	Subtotal    float64                    `json:"subtotal"`
	Surcharges  []primitives.SurchargeLine `json:"surcharges,omitempty"`
	FixedCharge float64                    `json:"fixed_charge"`
	Total       float64                    `json:"total"`

	// Formula describes how the total was calculated
	Formula string `json:"formula"`
}

// Calculator prices usage against a set of tariff tables
type Calculator struct {
	tables tariff.Tables
}

// NewCalculator creates a calculator over tables. Tables are validated so a
// broken schedule is caught before any bill is priced.
func NewCalculator(tables tariff.Tables) (*Calculator, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{tables: tables}, nil
}

// Default returns a calculator over the built-in tables
func Default() *Calculator {
	return defaultCalculator
}

var defaultCalculator = &Calculator{tables: tariff.Builtin()}

// Tables returns the tables the calculator prices with
func (c *Calculator) Tables() tariff.Tables {
	return c.tables
}

// ComputeElectricity prices kWh against the nationwide domestic schedule,
// then applies service tax and the KWTBB levy in sequence.
// Usage must be non-negative; callers validate it.
func (c *Calculator) ComputeElectricity(usageKWh float64) float64 {
	amount, err := c.amount(types.UtilityElectricity, "", usageKWh)
	if err != nil {
		return 0
	}
	return amount
}

// ComputeWater prices liters against the region's domestic schedule and adds
// the region's flat fixed charge. An unrecognized region yields 0.
func (c *Calculator) ComputeWater(usageLiters float64, region string) float64 {
	amount, err := c.amount(types.UtilityWater, region, usageLiters)
	if err != nil {
		return 0
	}
	return amount
}

// Quote prices usage for a utility and provider/region selector against the
// domestic schedule. An empty selector is accepted only for utilities with a
// nationwide provider. Unknown selectors return a NOT_FOUND error.
func (c *Calculator) Quote(utility types.UtilityType, selector string, usage float64) (*Breakdown, error) {
	table, key, provider, err := c.resolve(utility, selector)
	if err != nil {
		return nil, err
	}

	quantity := table.Quantity(usage)
	lines := primitives.TieredLines(quantity, provider.Domestic.PricingTiers())

	var subtotal float64
	for _, line := range lines {
		subtotal += line.Amount
	}

	total, surcharges := primitives.ApplySurcharges(subtotal, table.Surcharges)
	total += provider.FixedCharge

	return &Breakdown{
		Utility:     utility,
		Selector:    key,
		Provider:    provider.Name,
		Usage:       usage,
		Quantity:    quantity,
		Unit:        table.Unit,
		Tiers:       lines,
		Subtotal:    subtotal,
		Surcharges:  surcharges,
		FixedCharge: provider.FixedCharge,
		Total:       total,
		Formula:     formula(lines, surcharges, provider.FixedCharge),
	}, nil
}

// amount prices usage like Quote without building the breakdown
func (c *Calculator) amount(utility types.UtilityType, selector string, usage float64) (float64, error) {
	table, _, provider, err := c.resolve(utility, selector)
	if err != nil {
		return 0, err
	}

	subtotal := primitives.CalculateTieredCost(table.Quantity(usage), provider.Domestic.PricingTiers())
	total, _ := primitives.ApplySurcharges(subtotal, table.Surcharges)
	return total + provider.FixedCharge, nil
}

// resolve finds the table and provider a selector names. An empty selector
// falls back to the table's nationwide provider.
func (c *Calculator) resolve(utility types.UtilityType, selector string) (*tariff.Table, string, tariff.Provider, error) {
	table, ok := c.tables.For(utility)
	if !ok {
		return nil, "", tariff.Provider{}, errors.NotFound("utility", string(utility))
	}

	key := selector
	if key == "" {
		key = table.Nationwide
	}
	if key == "" {
		return nil, "", tariff.Provider{}, errors.Input(fmt.Sprintf("%s requires a provider or region", utility))
	}

	provider, ok := table.Provider(key)
	if !ok {
		return nil, "", tariff.Provider{}, errors.NotFound(string(utility)+" provider or region", key)
	}
	return table, key, provider, nil
}

func formula(lines []primitives.TierLine, surcharges []primitives.SurchargeLine, fixed float64) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%g×%g", l.Quantity, l.UnitRate))
	}
	f := "0"
	if len(parts) > 0 {
		f = strings.Join(parts, " + ")
	}
	if len(surcharges) > 0 {
		f = "(" + f + ")"
		for _, s := range surcharges {
			f += fmt.Sprintf(" × %g", 1+s.Rate)
		}
	}
	if fixed != 0 {
		f += fmt.Sprintf(" + %g", fixed)
	}
	return f
}

// ComputeElectricity prices kWh with the built-in tables
func ComputeElectricity(usageKWh float64) float64 {
	return defaultCalculator.ComputeElectricity(usageKWh)
}

// ComputeWater prices liters for a region with the built-in tables
func ComputeWater(usageLiters float64, region string) float64 {
	return defaultCalculator.ComputeWater(usageLiters, region)
}
