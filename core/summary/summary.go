// Package summary folds bill records into calendar-month totals.
// Summaries are derived on demand and never persisted.
//
// Months are numbered 1-12 everywhere and follow the wall clock of a
// Calendar's time zone, local time unless configured otherwise. Period keys
// are zero-padded "YYYY-MM" strings, so sorting keys lexically also sorts
// them in time.
package summary

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"utility-bill/core/types"
)

// Period is one calendar month
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
}

// Calendar groups records by the calendar months of one time zone
type Calendar struct {
	loc *time.Location
}

// In returns a calendar for loc. A nil loc follows time.Local.
func In(loc *time.Location) Calendar {
	return Calendar{loc: loc}
}

// Location returns the time zone months are taken in
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// PeriodOf returns the calendar month containing t
func (c Calendar) PeriodOf(t time.Time) Period {
	t = t.In(c.Location())
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Key renders the period as "YYYY-MM"
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// MonthlySummary is the total billed for one utility in one month
type MonthlySummary struct {
	Period
	Utility types.UtilityType `json:"utility"`
	Total   float64           `json:"total"`
	Count   int               `json:"count"`
}

// Totals are the most recent monthly totals shown on the history screen
type Totals struct {
	Electricity float64 `json:"electricity"`
	Water       float64 `json:"water"`
	All         float64 `json:"all"`
}

type dated struct {
	types.BillRecord
	period Period
}

// withPeriods drops records whose timestamp cannot be parsed
func (c Calendar) withPeriods(records []types.BillRecord, filter types.UtilityFilter) []dated {
	out := make([]dated, 0, len(records))
	for _, r := range records {
		if !filter.Matches(r.Type) {
			continue
		}
		t, err := r.Time()
		if err != nil {
			continue
		}
		out = append(out, dated{BillRecord: r, period: c.PeriodOf(t)})
	}
	return out
}

// MonthlyTotal sums the amounts of records matching filter in the most
// recent calendar month that has any. It returns 0 when nothing matches.
func (c Calendar) MonthlyTotal(records []types.BillRecord, filter types.UtilityFilter) float64 {
	byMonth := lo.GroupBy(c.withPeriods(records, filter), func(d dated) string {
		return d.period.Key()
	})
	if len(byMonth) == 0 {
		return 0
	}

	keys := lo.Keys(byMonth)
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	return lo.SumBy(byMonth[keys[0]], func(d dated) float64 {
		return d.Amount
	})
}

// CurrentTotals computes MonthlyTotal for electricity, water and all records.
// Each figure uses its own most recent month.
func (c Calendar) CurrentTotals(records []types.BillRecord) Totals {
	return Totals{
		Electricity: c.MonthlyTotal(records, types.FilterElectricity),
		Water:       c.MonthlyTotal(records, types.FilterWater),
		All:         c.MonthlyTotal(records, types.FilterAll),
	}
}

// Monthly returns a bucket per (month, utility), newest month first and
// electricity before water within a month.
func (c Calendar) Monthly(records []types.BillRecord) []MonthlySummary {
	type bucketKey struct {
		period  Period
		utility types.UtilityType
	}

	buckets := make(map[bucketKey]*MonthlySummary)
	for _, d := range c.withPeriods(records, types.FilterAll) {
		k := bucketKey{period: d.period, utility: d.Type}
		b, ok := buckets[k]
		if !ok {
			b = &MonthlySummary{Period: d.period, Utility: d.Type}
			buckets[k] = b
		}
		b.Total += d.Amount
		b.Count++
	}

	out := lo.MapToSlice(buckets, func(_ bucketKey, b *MonthlySummary) MonthlySummary {
		return *b
	})
	sort.Slice(out, func(i, j int) bool {
		if ki, kj := out[i].Key(), out[j].Key(); ki != kj {
			return ki > kj
		}
		return out[i].Utility < out[j].Utility
	})
	return out
}
