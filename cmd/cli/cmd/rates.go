package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"premium-rating/core/ratetable"
	"premium-rating/core/repository"
	"premium-rating/core/types"
	"premium-rating/internal/config"
)

var (
	ratesState   string
	ratesProduct string
)

// ratesCmd lists approved coverages for a state
var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "List coverages with an approved rate table for a state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		manual, err := repository.LoadManual(cfg.Repository.ManualPath)
		if err != nil {
			return err
		}

		resolver := ratetable.NewResolver(manual, cfg)
		coverages, err := resolver.AvailableCoverages(context.Background(), ratesState, types.ProductType(ratesProduct))
		if err != nil {
			return err
		}

		if len(coverages) == 0 {
			fmt.Printf("No approved rate tables for %s/%s\n", ratesState, ratesProduct)
			return nil
		}
		fmt.Printf("Approved coverages for %s/%s (snapshot %s):\n", ratesState, ratesProduct, manual.ContentHash())
		for _, c := range coverages {
			fmt.Printf("  %s\n", c)
		}
		return nil
	},
}

var (
	importManual string
	importDB     string
)

// importCmd seeds a SQLite rate store from a YAML manual
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a YAML rate manual into a SQLite rate store",
	RunE: func(cmd *cobra.Command, args []string) error {
		manual, err := repository.LoadManual(importManual)
		if err != nil {
			return err
		}

		store, err := repository.NewSQLiteStore(importDB)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ImportManual(context.Background(), manual); err != nil {
			return err
		}
		fmt.Printf("Imported manual %s into %s (snapshot %s)\n", importManual, importDB, store.ContentHash())
		return nil
	},
}

func init() {
	ratesCmd.Flags().StringVar(&ratesState, "state", "", "state code (required)")
	ratesCmd.Flags().StringVar(&ratesProduct, "product", "auto", "product type")
	ratesCmd.MarkFlagRequired("state")

	importCmd.Flags().StringVar(&importManual, "manual", "rate_manual.yaml", "YAML rate manual path")
	importCmd.Flags().StringVar(&importDB, "db", "rates.db", "SQLite database path")
}
