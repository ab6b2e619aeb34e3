// Package cmd provides the CLI commands for the rating core.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"premium-rating/internal/config"
	"premium-rating/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rating",
	Short: "Compute insurance premium quotes from filed rate data",
	Long: `rating prices insurance quotes against state-regulated rate tables,
territory risk factors, and filed discount/surcharge rules.

It is a developer tool over the rating core library: the same pipeline a
quote service calls in process.

Examples:
  rating quote ./request.yaml
  rating rates --state CA --product auto
  rating import --manual rate_manual.yaml --db rates.db`,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rating.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	path := cfgFile
	if path == "" {
		path = "rating.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("rating version 0.1.0")
	},
}
