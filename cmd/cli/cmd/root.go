// Package cmd provides the CLI commands for utilbill.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"utility-bill/core/output"
	"utility-bill/internal/app"
	"utility-bill/internal/config"
	"utility-bill/internal/logging"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile      string
	verbose      bool
	outputFormat string
	showDetails  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "utilbill",
	Short: "Calculate Malaysian electricity and water bills",
	Long: `utilbill calculates household electricity and water bills from the
published progressive tariffs and keeps a history of every calculation.

Examples:
  utilbill electricity 350
  utilbill water 18000 --region central
  utilbill history list --type water
  utilbill summary`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the CLI
func Execute() error {
	defer logging.Sync()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.utilbill/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "", "output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&showDetails, "details", "d", false, "show the tier formula under each bill")

	// Add subcommands
	rootCmd.AddCommand(electricityCmd)
	rootCmd.AddCommand(waterCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(tariffCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func defaultConfigPath() string {
	return filepath.Join(config.Dir(), "config.yaml")
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.Set(cfg)

	// Initialize logging
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	logging.Sugar.Debugw("configuration loaded", "path", path, "backend", cfg.Storage.Backend)
	return nil
}

// openApp builds the engine from the active configuration
func openApp(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, config.Get(), app.Options{Logger: logging.Logger})
}

// formatter honours --format and --details over the configured defaults
func formatter() (*output.Formatter, error) {
	cfg := config.Get()

	name := cfg.Output.DefaultFormat
	if outputFormat != "" {
		name = outputFormat
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format, showDetails || cfg.Output.ShowBreakdown), nil
}

// withApp runs fn against a freshly opened engine and closes it afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, f *output.Formatter, w io.Writer) error) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, f, cmd.OutOrStdout())
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "utilbill version %s\n", Version)
	},
}
