// Package output provides output formatting for bills, history and summaries.
// This package produces human and machine-readable outputs.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"utility-bill/core/billing"
	"utility-bill/core/summary"
	"utility-bill/core/tariff"
	"utility-bill/core/types"
)

// Format represents output format type
type Format string

const (
	// FormatText is human-readable text
	FormatText Format = "text"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// Formatter renders results in one format
type Formatter struct {
	format        Format
	showBreakdown bool
}

// NewFormatter creates a formatter. showBreakdown adds the tier lines under
// each bill in text output.
func NewFormatter(format Format, showBreakdown bool) *Formatter {
	return &Formatter{format: format, showBreakdown: showBreakdown}
}

// Format returns the format type
func (f *Formatter) Format() Format {
	return f.format
}

// Bill is a priced bill as presented to the user
type Bill struct {
	Record    types.BillRecord   `json:"record"`
	Display   string             `json:"display"`
	Saved     bool               `json:"saved"`
	SaveError string             `json:"save_error,omitempty"`
	Breakdown *billing.Breakdown `json:"breakdown,omitempty"`
}

// RenderBill writes one bill
func (f *Formatter) RenderBill(w io.Writer, bill Bill) error {
	if f.format == FormatJSON {
		return writeJSON(w, bill)
	}

	fmt.Fprintf(w, "%s bill: %s\n", title(bill.Record.Type), bill.Display)
	if bill.Breakdown != nil {
		fmt.Fprintf(w, "Usage:    %s %s (%s)\n", formatNumber(bill.Breakdown.Quantity), bill.Breakdown.Unit, bill.Breakdown.Provider)
		if f.showBreakdown {
			fmt.Fprintf(w, "Formula:  %s\n", bill.Breakdown.Formula)
		}
	}
	if !bill.Saved {
		fmt.Fprintf(w, "Warning:  bill was not saved to history: %s\n", bill.SaveError)
	}
	return nil
}

// RenderHistory writes records, newest first as given
func (f *Formatter) RenderHistory(w io.Writer, records []types.BillRecord) error {
	if f.format == FormatJSON {
		return writeJSON(w, records)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No bills in history.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tUSAGE\tLOCATION\tAMOUNT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			displayDate(r), r.Type, formatUsage(r), r.Location, types.FormatAmount(r.Amount))
	}
	return tw.Flush()
}

// RenderSummary writes the current monthly totals and per-month buckets
func (f *Formatter) RenderSummary(w io.Writer, totals summary.Totals, monthly []summary.MonthlySummary) error {
	if f.format == FormatJSON {
		return writeJSON(w, map[string]interface{}{
			"totals":  totals,
			"monthly": monthly,
		})
	}

	fmt.Fprintf(w, "This month (electricity): %s\n", types.FormatAmount(totals.Electricity))
	fmt.Fprintf(w, "This month (water):       %s\n", types.FormatAmount(totals.Water))
	fmt.Fprintf(w, "This month (all):         %s\n", types.FormatAmount(totals.All))

	if len(monthly) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tTYPE\tBILLS\tTOTAL")
	for _, m := range monthly {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.Key(), m.Utility, m.Count, types.FormatAmount(m.Total))
	}
	return tw.Flush()
}

// RenderTable writes one utility's tariff table
func (f *Formatter) RenderTable(w io.Writer, table *tariff.Table) error {
	if f.format == FormatJSON {
		return writeJSON(w, table)
	}

	fmt.Fprintf(w, "%s tariffs (per %s)\n", title(table.Utility), table.Unit)
	for _, s := range table.Surcharges {
		fmt.Fprintf(w, "  surcharge %s: %s%%\n", s.Name, decimal.NewFromFloat(s.Rate).Shift(2).String())
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, key := range table.Keys() {
		p := table.Providers[key]
		fmt.Fprintf(tw, "\n%s\t%s\t\n", key, p.Name)
		for _, category := range []tariff.Category{tariff.Domestic, tariff.Commercial} {
			schedule, ok := p.Schedule(category)
			if !ok {
				continue
			}
			fmt.Fprintf(tw, "\t%s\t\n", category)
			for _, tier := range schedule {
				fmt.Fprintf(tw, "\t  %s\tRM %s\n", tier.Label(table.Unit), formatNumber(tier.Rate))
			}
		}
		if p.FixedCharge > 0 {
			fmt.Fprintf(tw, "\tfixed charge\t%s\n", types.FormatAmount(p.FixedCharge))
		}
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func title(u types.UtilityType) string {
	s := string(u)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func displayDate(r types.BillRecord) string {
	t, err := r.Time()
	if err != nil {
		return r.Timestamp
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatUsage(r types.BillRecord) string {
	unit := "kWh"
	if r.Type == types.UtilityWater {
		unit = "L"
	}
	return formatNumber(r.Usage) + " " + unit
}

func formatNumber(v float64) string {
	return decimal.NewFromFloat(v).String()
}
