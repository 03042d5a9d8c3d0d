// Package cmd - bill commands
package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"utility-bill/core/engine"
	"utility-bill/core/output"
	"utility-bill/core/types"
	"utility-bill/internal/app"
)

var waterRegion string

// electricityCmd prices an electricity bill
var electricityCmd = &cobra.Command{
	Use:   "electricity <kWh>",
	Short: "Calculate an electricity bill",
	Long: `Calculate a domestic electricity bill from monthly usage in kWh.

The nationwide TNB schedule is applied, followed by 6% service tax and the
1.6% KWTBB levy. The bill is saved to history.

Examples:
  utilbill electricity 350
  utilbill electricity 1200 --details`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBill(cmd, engine.Request{Utility: types.UtilityElectricity}, args[0])
	},
}

// waterCmd prices a water bill
var waterCmd = &cobra.Command{
	Use:   "water <liters> --region <region>",
	Short: "Calculate a water bill",
	Long: `Calculate a domestic water bill from monthly usage in liters.

Usage is converted to cubic meters, priced on the region's tiers and the
region's fixed charge is added. The bill is saved to history.

Regions: central, northern, southern, eastern, sabah, sarawak

Examples:
  utilbill water 18000 --region central`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBill(cmd, engine.Request{Utility: types.UtilityWater, Region: waterRegion}, args[0])
	},
}

func init() {
	waterCmd.Flags().StringVarP(&waterRegion, "region", "r", "", "supply region (required)")
	_ = waterCmd.MarkFlagRequired("region")
}

func runBill(cmd *cobra.Command, req engine.Request, rawUsage string) error {
	usage, err := engine.ParseUsage(rawUsage)
	if err != nil {
		return err
	}
	req.Usage = usage

	return withApp(cmd, func(ctx context.Context, a *app.App, f *output.Formatter, w io.Writer) error {
		res, err := a.Engine.Calculate(ctx, req)
		if err != nil {
			return err
		}

		bill := output.Bill{
			Record:    res.Record,
			Display:   types.FormatAmount(res.Record.Amount),
			Saved:     res.Saved.OK,
			Breakdown: res.Breakdown,
		}
		if res.Saved.Err != nil {
			bill.SaveError = res.Saved.Err.Error()
		}
		return f.RenderBill(w, bill)
	})
}
