// Package factors computes driver, vehicle, and credit multipliers from
// a resolved rate table. Every lookup is a pure function of its inputs;
// an input outside all defined bands fails instead of snapping to the
// nearest band, unless the table declares an open-ended end band.
package factors

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"premium-rating/core/types"
	"premium-rating/internal/errors"
)

// Calculator performs the three independent factor lookups
type Calculator struct{}

// NewCalculator creates a factor calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate resolves the factor set for a request. The three lookups
// run on separate goroutines; the first failure cancels the rest.
// The credit lookup is skipped when the state prohibits credit rating.
func (c *Calculator) Calculate(ctx context.Context, table *types.RateTable, req *types.RatingRequest, stateRules *types.StateRuleSet) (*types.FactorSet, error) {
	set := &types.FactorSet{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		f, err := c.driverFactor(gctx, table, req.Drivers)
		if err != nil {
			return err
		}
		set.Driver = f
		return nil
	})

	g.Go(func() error {
		f, err := c.vehicleFactor(gctx, table, req.Vehicle)
		if err != nil {
			return err
		}
		set.Vehicle = f
		return nil
	})

	creditAllowed := req.Credit != nil && !stateRules.FactorProhibited(types.FactorCredit)
	if creditAllowed {
		g.Go(func() error {
			f, err := c.creditFactor(gctx, table, req.Credit)
			if err != nil {
				return err
			}
			set.Credit = &f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// driverFactor rates every driver and returns the governing (highest)
// combined age x experience factor: the worst driver rates the policy.
func (c *Calculator) driverFactor(ctx context.Context, table *types.RateTable, drivers []types.Driver) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, errors.Wrap(errors.TypeCalculationTimeout, "driver factor lookup cancelled", err)
	}
	if len(table.DriverAgeBands) == 0 {
		return decimal.Zero, errors.FactorLookup("driver age table "+table.ID, "any age (no bands defined)")
	}

	governing := decimal.Zero
	for _, d := range drivers {
		ageFactor, err := lookupAgeBand(table, d.Age)
		if err != nil {
			return decimal.Zero, err
		}
		expFactor, err := lookupExperienceBand(table, d.YearsLicensed)
		if err != nil {
			return decimal.Zero, err
		}
		combined := ageFactor.Mul(expFactor)
		if combined.GreaterThan(governing) {
			governing = combined
		}
	}
	return governing, nil
}

func lookupAgeBand(table *types.RateTable, age int) (decimal.Decimal, error) {
	for _, b := range table.DriverAgeBands {
		if b.Contains(age) {
			return b.Factor, nil
		}
	}
	return decimal.Zero, errors.FactorLookup(
		"driver age table "+table.ID, fmt.Sprintf("age %d", age))
}

func lookupExperienceBand(table *types.RateTable, years int) (decimal.Decimal, error) {
	// Tables without experience bands rate on age alone.
	if len(table.ExperienceBands) == 0 {
		return decimal.NewFromInt(1), nil
	}
	for _, b := range table.ExperienceBands {
		if b.Contains(years) {
			return b.Factor, nil
		}
	}
	return decimal.Zero, errors.FactorLookup(
		"experience table "+table.ID, fmt.Sprintf("%d years licensed", years))
}

// vehicleFactor combines the type factor with multiplicative safety credits
func (c *Calculator) vehicleFactor(ctx context.Context, table *types.RateTable, vehicle types.VehicleInfo) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, errors.Wrap(errors.TypeCalculationTimeout, "vehicle factor lookup cancelled", err)
	}

	vtype := strings.ToLower(vehicle.Type)
	base, ok := table.VehicleTypeFactor[vtype]
	if !ok {
		return decimal.Zero, errors.FactorLookup(
			"vehicle type table "+table.ID, "type "+vehicle.Type)
	}

	factor := base
	for _, feature := range vehicle.SafetyFeatures {
		// Unknown safety features earn no credit; they are not an error.
		if credit, ok := table.SafetyCredits[strings.ToLower(feature)]; ok {
			factor = factor.Mul(credit)
		}
	}
	return factor, nil
}

// creditFactor looks up the credit tier. Callers gate on state law;
// this lookup itself is unconditional.
func (c *Calculator) creditFactor(ctx context.Context, table *types.RateTable, credit *types.CreditInfo) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, errors.Wrap(errors.TypeCalculationTimeout, "credit factor lookup cancelled", err)
	}
	if len(table.CreditTierFactor) == 0 {
		return decimal.Zero, errors.FactorLookup("credit tier table "+table.ID, "any tier (no tiers defined)")
	}

	tier := strings.ToLower(credit.Tier)
	f, ok := table.CreditTierFactor[tier]
	if !ok {
		return decimal.Zero, errors.FactorLookup(
			"credit tier table "+table.ID, "tier "+credit.Tier)
	}
	return f, nil
}
