package factors

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"premium-rating/core/types"
	"premium-rating/internal/errors"
)

func intPtr(v int) *int { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testTable() *types.RateTable {
	return &types.RateTable{
		ID: "CA-AUTO-LIAB-2026",
		DriverAgeBands: []types.AgeBand{
			{MinAge: 16, MaxAge: intPtr(24), Factor: dec("1.85")},
			{MinAge: 25, MaxAge: intPtr(39), Factor: dec("1.10")},
			{MinAge: 40, Factor: dec("1.00")},
		},
		ExperienceBands: []types.ExperienceBand{
			{MinYears: 0, MaxYears: intPtr(2), Factor: dec("1.30")},
			{MinYears: 3, Factor: dec("1.00")},
		},
		VehicleTypeFactor: map[string]decimal.Decimal{
			"sedan": dec("1.00"),
			"suv":   dec("1.10"),
		},
		SafetyCredits: map[string]decimal.Decimal{
			"abs":     dec("0.97"),
			"airbags": dec("0.98"),
		},
		CreditTierFactor: map[string]decimal.Decimal{
			"excellent": dec("0.85"),
			"poor":      dec("1.25"),
		},
	}
}

func baseRequest() *types.RatingRequest {
	return &types.RatingRequest{
		Drivers: []types.Driver{{Age: 35, YearsLicensed: 12}},
		Vehicle: types.VehicleInfo{Type: "sedan"},
	}
}

var noRules = &types.StateRuleSet{}

func TestCalculateFactorSet(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Vehicle.SafetyFeatures = []string{"abs"}
	req.Credit = &types.CreditInfo{Tier: "excellent"}

	set, err := c.Calculate(context.Background(), testTable(), req, noRules)
	require.NoError(t, err)

	require.True(t, set.Driver.Equal(dec("1.10")))
	require.True(t, set.Vehicle.Equal(dec("0.97")))
	require.NotNil(t, set.Credit)
	require.True(t, set.Credit.Equal(dec("0.85")))
	require.True(t, set.Combined().Equal(dec("1.10").Mul(dec("0.97")).Mul(dec("0.85"))))
}

func TestWorstDriverGoverns(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Drivers = []types.Driver{
		{Age: 35, YearsLicensed: 12},
		{Age: 19, YearsLicensed: 1},
	}

	set, err := c.Calculate(context.Background(), testTable(), req, noRules)
	require.NoError(t, err)

	// 1.85 * 1.30 for the 19-year-old beats 1.10 for the 35-year-old.
	require.True(t, set.Driver.Equal(dec("1.85").Mul(dec("1.30"))))
}

func TestOutOfBandAgeFailsClosed(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Drivers = []types.Driver{{Age: 15, YearsLicensed: 0}}

	_, err := c.Calculate(context.Background(), testTable(), req, noRules)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeFactorLookup))
	require.Contains(t, err.Error(), "age 15")
}

func TestOpenEndedTopBand(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Drivers = []types.Driver{{Age: 80, YearsLicensed: 55}}

	set, err := c.Calculate(context.Background(), testTable(), req, noRules)
	require.NoError(t, err)
	require.True(t, set.Driver.Equal(dec("1.00")))
}

func TestNoExperienceBandsRatesOnAgeAlone(t *testing.T) {
	c := NewCalculator()
	table := testTable()
	table.ExperienceBands = nil
	req := baseRequest()

	set, err := c.Calculate(context.Background(), table, req, noRules)
	require.NoError(t, err)
	require.True(t, set.Driver.Equal(dec("1.10")))
}

func TestVehicleFactorCombinesSafetyCredits(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Vehicle = types.VehicleInfo{Type: "SUV", SafetyFeatures: []string{"abs", "airbags"}}

	set, err := c.Calculate(context.Background(), testTable(), req, noRules)
	require.NoError(t, err)
	require.True(t, set.Vehicle.Equal(dec("1.10").Mul(dec("0.97")).Mul(dec("0.98"))))
}

func TestUnknownSafetyFeatureEarnsNoCredit(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Vehicle.SafetyFeatures = []string{"flux_capacitor"}

	set, err := c.Calculate(context.Background(), testTable(), req, noRules)
	require.NoError(t, err)
	require.True(t, set.Vehicle.Equal(dec("1.00")))
}

func TestUnknownVehicleTypeFailsClosed(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Vehicle.Type = "hovercraft"

	_, err := c.Calculate(context.Background(), testTable(), req, noRules)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeFactorLookup))
}

func TestCreditSkippedWhenStateProhibits(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Credit = &types.CreditInfo{Tier: "poor"}
	prohibiting := &types.StateRuleSet{
		State:             "CA",
		ProhibitedFactors: []types.RatingFactor{types.FactorCredit},
	}

	set, err := c.Calculate(context.Background(), testTable(), req, prohibiting)
	require.NoError(t, err)
	require.Nil(t, set.Credit, "credit factor must not be looked up in a prohibiting state")
}

func TestUnknownCreditTierFailsClosed(t *testing.T) {
	c := NewCalculator()
	req := baseRequest()
	req.Credit = &types.CreditInfo{Tier: "mysterious"}

	_, err := c.Calculate(context.Background(), testTable(), req, noRules)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeFactorLookup))
}
