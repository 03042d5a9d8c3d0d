// Package cmd - summary and tariff commands
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"utility-bill/core/output"
	"utility-bill/core/types"
	"utility-bill/internal/app"
)

// summaryCmd shows the most recent monthly totals
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show this month's totals and a per-month breakdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, f *output.Formatter, w io.Writer) error {
			s := a.Engine.Summary(ctx)
			return f.RenderSummary(w, s.Totals, s.Monthly)
		})
	},
}

// tariffCmd groups the tariff subcommands
var tariffCmd = &cobra.Command{
	Use:   "tariff",
	Short: "Inspect tariff tables",
}

var tariffShowCmd = &cobra.Command{
	Use:   "show [electricity|water]",
	Short: "Print the active tariff tables",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		utilities := []types.UtilityType{types.UtilityElectricity, types.UtilityWater}
		if len(args) == 1 {
			u, err := types.ParseUtilityType(args[0])
			if err != nil {
				return err
			}
			utilities = []types.UtilityType{u}
		}

		return withApp(cmd, func(ctx context.Context, a *app.App, f *output.Formatter, w io.Writer) error {
			tables := a.Engine.Tariffs()
			for i, u := range utilities {
				if i > 0 && f.Format() == output.FormatText {
					fmt.Fprintln(w)
				}
				table, _ := tables.For(u)
				if err := f.RenderTable(w, table); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	tariffCmd.AddCommand(tariffShowCmd)
}
