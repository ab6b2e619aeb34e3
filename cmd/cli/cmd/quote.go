package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"premium-rating/core/cache"
	"premium-rating/core/engine"
	"premium-rating/core/repository"
	"premium-rating/core/types"
	"premium-rating/internal/config"
)

var quoteFormat string

// quoteCmd prices a rating request file
var quoteCmd = &cobra.Command{
	Use:   "quote [request.yaml]",
	Short: "Price a rating request against the loaded rate manual",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}
		var req types.RatingRequest
		if err := yaml.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("parse request: %w", err)
		}

		repo, c, cleanup, err := buildStack(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		eng := engine.New(repo, c, cfg)
		result, err := eng.Calculate(context.Background(), &req)
		if err != nil {
			if violations := engine.ViolationsFromError(err); violations != nil {
				fmt.Fprintln(os.Stderr, "Quote rejected:")
				for _, v := range violations {
					fmt.Fprintf(os.Stderr, "  [%s] %s: %s\n", v.Severity, v.RuleID, v.Message)
				}
			}
			return err
		}

		return printResult(result)
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteFormat, "format", "text", "output format (text, json)")
}

// buildStack wires the repository and cache tiers from config
func buildStack(cfg *config.Config) (repository.Repository, *cache.Cache, func(), error) {
	manual, err := repository.LoadManual(cfg.Repository.ManualPath)
	if err != nil {
		return nil, nil, nil, err
	}

	var store cache.Store
	cleanup := func() {}

	if cfg.Cache.RedisAddr != "" {
		rs := cache.NewRedisStore(cfg.Cache.RedisAddr, "", cfg.Cache.RedisDB)
		store = rs
		cleanup = func() { rs.Close() }
	} else {
		ms, err := cache.NewMemoryStore(cfg.Cache.JanitorSchedule)
		if err != nil {
			return nil, nil, nil, err
		}
		store = ms
		cleanup = ms.Close
	}

	c := cache.New(store, &cfg.Cache)
	return cache.NewCachedRepository(manual, c), c, cleanup, nil
}

func printResult(result *types.RatingResult) error {
	if quoteFormat == "json" {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Quote %s (table %s, snapshot %s)\n", result.QuoteID, result.RateTableID, result.RateTableHash)
	fmt.Printf("  Base premium:     %s\n", result.BasePremium.StringFixed(2))
	fmt.Printf("  Territory factor: %s\n", result.TerritoryFactor.String())
	for name, f := range result.AppliedFactors {
		if name == "territory" {
			continue
		}
		fmt.Printf("  %-17s %s\n", name+" factor:", f.String())
	}
	for _, d := range result.Discounts {
		fmt.Printf("  Discount %-9s -%s\n", d.Code+":", d.Amount.StringFixed(2))
	}
	for _, s := range result.Surcharges {
		fmt.Printf("  Surcharge %-8s +%s\n", s.Code+":", s.Amount.StringFixed(2))
	}
	fmt.Printf("  Total premium:    %s\n", result.TotalPremium.StringFixed(2))
	for _, v := range result.Violations {
		fmt.Printf("  [%s] %s\n", v.Severity, v.Message)
	}
	fmt.Printf("  Computed in %dms\n", result.ComputeTimeMs)
	return nil
}
