// Package tariff holds the static rate tables bills are computed from.
//
// A Table belongs to one utility and maps a provider or region key to a
// Provider, which carries a domestic and a commercial Schedule. Only the
// domestic schedules are billed; commercial ones are reference data.
package tariff

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"utility-bill/core/pricing/primitives"
	"utility-bill/core/types"
	"utility-bill/internal/errors"
)

// Category is the customer classification a schedule applies to
type Category string

const (
	Domestic   Category = "domestic"
	Commercial Category = "commercial"
)

// Tier is one bracket of a schedule. UpperBound is +Inf for the final tier.
type Tier struct {
	LowerBound float64
	UpperBound float64
	Rate       float64
}

type tierJSON struct {
	LowerBound float64  `json:"lower_bound"`
	UpperBound *float64 `json:"upper_bound"`
	Rate       float64  `json:"rate"`
}

// MarshalJSON encodes an unbounded upper bound as null
func (t Tier) MarshalJSON() ([]byte, error) {
	out := tierJSON{LowerBound: t.LowerBound, Rate: t.Rate}
	if !t.IsUnbounded() {
		upper := t.UpperBound
		out.UpperBound = &upper
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null or missing upper bound as unbounded
func (t *Tier) UnmarshalJSON(data []byte) error {
	var in tierJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.LowerBound = in.LowerBound
	t.Rate = in.Rate
	t.UpperBound = math.Inf(1)
	if in.UpperBound != nil {
		t.UpperBound = *in.UpperBound
	}
	return nil
}

// IsUnbounded reports whether the tier is the open-ended final tier
func (t Tier) IsUnbounded() bool {
	return math.IsInf(t.UpperBound, 1)
}

// Label renders the bracket the way tariff sheets print it,
// e.g. "0 - 200 kWh", "201 - 300 kWh", "> 900 kWh".
func (t Tier) Label(unit string) string {
	switch {
	case t.LowerBound == 0 && t.IsUnbounded():
		return "All usage"
	case t.IsUnbounded():
		return "> " + formatBound(t.LowerBound) + " " + unit
	case t.LowerBound == 0:
		return "0 - " + formatBound(t.UpperBound) + " " + unit
	default:
		return formatBound(t.LowerBound+1) + " - " + formatBound(t.UpperBound) + " " + unit
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Schedule is an ordered, contiguous list of tiers covering [0, +Inf)
type Schedule []Tier

// Validate checks the schedule invariants: starts at zero, each lower bound
// equals the previous upper bound, only the last tier is unbounded, and no
// rate is negative.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return errors.Tariff("schedule has no tiers")
	}
	if s[0].LowerBound != 0 {
		return errors.Tariff(fmt.Sprintf("first tier starts at %v, not 0", s[0].LowerBound))
	}
	for i, tier := range s {
		if tier.Rate < 0 || math.IsNaN(tier.Rate) {
			return errors.Tariff(fmt.Sprintf("tier %d has invalid rate %v", i, tier.Rate))
		}
		last := i == len(s)-1
		if tier.IsUnbounded() != last {
			if last {
				return errors.Tariff("final tier must be unbounded")
			}
			return errors.Tariff(fmt.Sprintf("tier %d is unbounded but is not the final tier", i))
		}
		if !last && tier.UpperBound <= tier.LowerBound {
			return errors.Tariff(fmt.Sprintf("tier %d has upper bound %v not above lower bound %v", i, tier.UpperBound, tier.LowerBound))
		}
		if i > 0 && tier.LowerBound != s[i-1].UpperBound {
			return errors.Tariff(fmt.Sprintf("tier %d starts at %v but tier %d ends at %v", i, tier.LowerBound, i-1, s[i-1].UpperBound))
		}
	}
	return nil
}

// PricingTiers converts the schedule for the pricing primitives
func (s Schedule) PricingTiers() []primitives.PricingTier {
	tiers := make([]primitives.PricingTier, len(s))
	for i, t := range s {
		tiers[i] = primitives.PricingTier{From: t.LowerBound, UpTo: t.UpperBound, UnitRate: t.Rate}
	}
	return tiers
}

// Provider is one utility company or supply region
type Provider struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Domestic    Schedule `json:"domestic"`
	Commercial  Schedule `json:"commercial,omitempty"`
	FixedCharge float64  `json:"fixed_charge"`
}

// Schedule returns the schedule for a customer category
func (p Provider) Schedule(c Category) (Schedule, bool) {
	switch c {
	case Domestic:
		return p.Domestic, len(p.Domestic) > 0
	case Commercial:
		return p.Commercial, len(p.Commercial) > 0
	default:
		return nil, false
	}
}

// Table is every tariff for one utility
type Table struct {
	Utility types.UtilityType `json:"utility"`

	// Unit is the billing unit tiers are expressed in (kWh, m³)
	Unit string `json:"unit"`

	// UsageDivisor converts entered usage into Unit (1000 for liters to m³)
	UsageDivisor float64 `json:"usage_divisor"`

	// Surcharges apply in order after the tiered subtotal
	Surcharges []primitives.Surcharge `json:"surcharges,omitempty"`

	// Nationwide names the provider billed when the utility takes no
	// selector; empty when callers must choose a provider or region
	Nationwide string `json:"nationwide,omitempty"`

	Providers map[string]Provider `json:"providers"`
}

// Provider looks up a provider or region by key
func (t *Table) Provider(key string) (Provider, bool) {
	p, ok := t.Providers[key]
	return p, ok
}

// Keys returns the provider keys in sorted order
func (t *Table) Keys() []string {
	keys := lo.Keys(t.Providers)
	sort.Strings(keys)
	return keys
}

// Quantity converts entered usage into billing units
func (t *Table) Quantity(usage float64) float64 {
	if t.UsageDivisor == 0 || t.UsageDivisor == 1 {
		return usage
	}
	return usage / t.UsageDivisor
}

// Validate checks every schedule in the table
func (t *Table) Validate() error {
	if !t.Utility.IsValid() {
		return errors.Tariff(fmt.Sprintf("unknown utility %q", t.Utility))
	}
	if len(t.Providers) == 0 {
		return errors.Tariff(fmt.Sprintf("%s table has no providers", t.Utility))
	}
	if t.UsageDivisor < 0 {
		return errors.Tariff(fmt.Sprintf("%s table has negative usage divisor", t.Utility))
	}
	if t.Nationwide != "" {
		if _, ok := t.Providers[t.Nationwide]; !ok {
			return errors.Tariff(fmt.Sprintf("%s nationwide provider %q is not in the table", t.Utility, t.Nationwide))
		}
	}
	for _, key := range t.Keys() {
		p := t.Providers[key]
		if p.FixedCharge < 0 {
			return errors.Tariff(fmt.Sprintf("%s/%s: negative fixed charge", t.Utility, key))
		}
		if err := p.Domestic.Validate(); err != nil {
			return errors.Wrapf(errors.TypeTariff, err, "%s/%s domestic", t.Utility, key)
		}
		if len(p.Commercial) > 0 {
			if err := p.Commercial.Validate(); err != nil {
				return errors.Wrapf(errors.TypeTariff, err, "%s/%s commercial", t.Utility, key)
			}
		}
	}
	return nil
}

// Tables bundles the electricity and water tables
type Tables struct {
	Electricity Table `json:"electricity"`
	Water       Table `json:"water"`
}

// For returns the table for a utility
func (ts *Tables) For(u types.UtilityType) (*Table, bool) {
	switch u {
	case types.UtilityElectricity:
		return &ts.Electricity, true
	case types.UtilityWater:
		return &ts.Water, true
	default:
		return nil, false
	}
}

// Validate checks both tables
func (ts *Tables) Validate() error {
	if err := ts.Electricity.Validate(); err != nil {
		return err
	}
	return ts.Water.Validate()
}
