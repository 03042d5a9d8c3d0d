// Package primitives - Tiered pricing primitives
// Handles progressive (marginal-rate) utility tariffs
package primitives

// TieredLines splits quantity across tiers. Every tier fully below the
// quantity is charged its whole width; the tier containing the quantity is
// charged (quantity - From). Tiers must be sorted and contiguous.
func TieredLines(quantity float64, tiers []PricingTier) []TierLine {
	if quantity <= 0 || len(tiers) == 0 {
		return nil
	}

	lines := make([]TierLine, 0, len(tiers))
	for _, tier := range tiers {
		if quantity <= tier.From {
			break
		}

		inTier := quantity - tier.From
		if !tier.IsUnbounded() && quantity > tier.UpTo {
			inTier = tier.Width()
		}

		line := TierLine{
			Tier:     tier,
			From:     tier.From,
			Quantity: inTier,
			UnitRate: tier.UnitRate,
			Amount:   inTier * tier.UnitRate,
		}
		if !tier.IsUnbounded() {
			upTo := tier.UpTo
			line.UpTo = &upTo
		}
		lines = append(lines, line)
	}

	return lines
}

// CalculateTieredCost computes the stepped cost for quantity.
// Lower tiers are always billed at their own rate regardless of the total.
func CalculateTieredCost(quantity float64, tiers []PricingTier) float64 {
	var totalCost float64
	for _, line := range TieredLines(quantity, tiers) {
		totalCost += line.Amount
	}
	return totalCost
}
