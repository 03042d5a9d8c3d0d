package primitives

// ApplySurcharges multiplies subtotal by (1 + rate) for each surcharge in
// order, so later surcharges are levied on earlier ones.
func ApplySurcharges(subtotal float64, surcharges []Surcharge) (float64, []SurchargeLine) {
	if len(surcharges) == 0 {
		return subtotal, nil
	}

	total := subtotal
	lines := make([]SurchargeLine, 0, len(surcharges))
	for _, s := range surcharges {
		before := total
		total *= 1 + s.Rate
		lines = append(lines, SurchargeLine{
			Name:   s.Name,
			Rate:   s.Rate,
			Before: before,
			After:  total,
		})
	}
	return total, lines
}
