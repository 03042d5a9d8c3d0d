// Package cmd - history commands
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

var (
	historyType string
	clearYes    bool
)

// historyCmd groups the history subcommands
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or clear saved bills",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved bills, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := types.ParseUtilityFilter(historyType)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App, f *output.Formatter, w io.Writer) error {
			return f.RenderHistory(w, a.Engine.History(ctx, filter))
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved bill",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear history without --yes")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App, f *output.Formatter, w io.Writer) error {
			result := a.Engine.ClearHistory(ctx)
			if !result.OK {
				return result.Err
			}
			_, err := fmt.Fprintln(w, "History cleared.")
			return err
		})
	},
}

func init() {
	historyListCmd.Flags().StringVarP(&historyType, "type", "t", "all", "filter by type (all, electricity, water)")
	historyClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "confirm deletion")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
}
