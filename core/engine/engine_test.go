package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"premium-rating/core/cache"
	"premium-rating/core/repository"
	"premium-rating/core/types"
	"premium-rating/internal/config"
	"premium-rating/internal/errors"
)

const engineManual = `
rate_tables:
  - id: CA-AUTO-LIAB-2026
    state: CA
    product: auto
    coverage: liability
    status: approved
    approval_id: CDI-2026-0412
    base_rate: "850.00"
    min_premium: "300.00"
    max_premium: "5000.00"
    effective_at: 2026-01-01T00:00:00Z
    driver_age_bands:
      - {min_age: 16, max_age: 24, factor: "1.85"}
      - {min_age: 25, max_age: 39, factor: "1.10"}
      - {min_age: 40, factor: "1.00"}
    experience_bands:
      - {min_years: 0, max_years: 2, factor: "1.30"}
      - {min_years: 3, factor: "1.00"}
    vehicle_type_factor:
      sedan: "1.00"
      suv: "1.10"
    safety_credits:
      abs: "0.97"
    credit_tier_factor:
      excellent: "0.85"
territories:
  - state: CA
    zip_code: "90210"
    product: auto
    base_factor: "1.10"
    crime_loading: "0.06"
    weather_loading: "0.04"
    traffic_loading: "0.09"
    catastrophe_loading: "0.05"
    effective_at: 2026-01-01T00:00:00Z
discount_rules:
  - code: GOOD_DRIVER
    description: Clean record discount
    category: driver
    products: [auto]
    value_type: percentage
    value: "0.30"
    stackable: true
    priority: 10
    conditions:
      - {attribute: driver.all_clean, operator: eq, value: "true"}
    effective_at: 2026-01-01T00:00:00Z
  - code: MULTI_POLICY
    description: Multi-policy discount
    category: policy
    products: [auto]
    value_type: percentage
    value: "0.20"
    stackable: true
    priority: 20
    conditions:
      - {attribute: policy.multi_policy, operator: eq, value: "true"}
    effective_at: 2026-01-01T00:00:00Z
  - code: PAID_IN_FULL
    description: Paid in full discount
    category: billing
    products: [auto]
    value_type: percentage
    value: "0.15"
    stackable: true
    priority: 30
    conditions:
      - {attribute: policy.paid_in_full, operator: eq, value: "true"}
    effective_at: 2026-01-01T00:00:00Z
surcharge_rules:
  - code: YOUTH
    description: Youthful operator surcharge
    category: driver
    products: [auto]
    value_type: percentage
    value: "0.15"
    max_cap: "400.00"
    stackable: false
    priority: 10
    conditions:
      - {attribute: driver.min_age, operator: lte, value: "21"}
    effective_at: 2026-01-01T00:00:00Z
state_rules:
  - state: CA
    prohibited_factors: [credit]
    required_coverages:
      auto: [liability]
    min_driver_age: 16
    max_vehicle_age_years: 40
`

func newTestEngine(t *testing.T, quoteCache bool) *Engine {
	t.Helper()
	manual, err := repository.ParseManual([]byte(engineManual))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Engine.QuoteCacheEnabled = quoteCache

	c := cache.Disabled()
	if quoteCache {
		store, err := cache.NewMemoryStore("")
		require.NoError(t, err)
		t.Cleanup(store.Close)
		c = cache.New(store, &cfg.Cache)
	}
	return New(manual, c, cfg)
}

func caRequest() *types.RatingRequest {
	return &types.RatingRequest{
		State:     "CA",
		ZIPCode:   "90210",
		Product:   types.ProductAuto,
		Coverages: []types.CoverageType{types.CoverageLiability},
		Drivers: []types.Driver{
			{Age: 35, YearsLicensed: 12, CleanRecord: true},
		},
		Vehicle:       types.VehicleInfo{Type: "sedan", ModelYear: 2023, SafetyFeatures: []string{"abs"}},
		EffectiveDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCalculateHappyPath(t *testing.T) {
	e := newTestEngine(t, false)

	result, err := e.Calculate(context.Background(), caRequest())
	require.NoError(t, err)

	// 850 * 1.1594 territory * 1.10 driver * 0.97 vehicle = 1051.51783,
	// minus the 30% clean-record discount.
	require.True(t, result.TotalPremium.Equal(decimal.RequireFromString("736.06")),
		"total = %s", result.TotalPremium)
	require.Equal(t, "CA-AUTO-LIAB-2026", result.RateTableID)
	require.NotEmpty(t, result.RateTableHash)
	require.NotEmpty(t, result.QuoteID)
	require.True(t, result.TerritoryFactor.Equal(decimal.RequireFromString("1.1594")))
	require.Len(t, result.Discounts, 1)
	require.Equal(t, "GOOD_DRIVER", result.Discounts[0].Code)
	require.Empty(t, result.Surcharges)
	require.Empty(t, result.Violations)
	require.False(t, result.FromCache)
	require.NotContains(t, result.AppliedFactors, string(types.FactorCredit),
		"credit is prohibited in this state")
}

func TestCalculateDeterministic(t *testing.T) {
	a, err := newTestEngine(t, false).Calculate(context.Background(), caRequest())
	require.NoError(t, err)
	b, err := newTestEngine(t, false).Calculate(context.Background(), caRequest())
	require.NoError(t, err)

	require.True(t, a.TotalPremium.Equal(b.TotalPremium))
	require.Equal(t, a.RateTableHash, b.RateTableHash)
}

func TestCalculateDiscountGlobalCap(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.MultiPolicy = true
	req.PaidInFull = true

	result, err := e.Calculate(context.Background(), req)
	require.NoError(t, err)

	// 30% + 20% + 15% eligible, capped at 50%: exactly half the
	// pre-discount premium of 1051.51783.
	require.True(t, result.TotalPremium.Equal(decimal.RequireFromString("525.76")),
		"total = %s", result.TotalPremium)
	require.Len(t, result.Discounts, 2, "the discount past the cap is dropped")
}

func TestCalculateYouthSurcharge(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.Drivers = []types.Driver{{Age: 19, YearsLicensed: 1, CleanRecord: true}}
	req.Vehicle.SafetyFeatures = nil

	result, err := e.Calculate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Surcharges, 1)
	require.Equal(t, "YOUTH", result.Surcharges[0].Code)
	require.True(t, result.TotalPremium.Equal(decimal.RequireFromString("1907.93")),
		"total = %s", result.TotalPremium)
}

func TestCalculateUnsupportedState(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.State = "ZZ"

	_, err := e.Calculate(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeStateNotSupported))
}

func TestCalculateUnsupportedStateConcurrent(t *testing.T) {
	e := newTestEngine(t, false)
	ctx := context.Background()

	// The unsupported-state error must win over every concurrent lookup
	// failure, no matter how the fan-out goroutines interleave.
	var wg sync.WaitGroup
	errs := make([]error, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := caRequest()
			req.State = "ZZ"
			_, errs[n] = e.Calculate(ctx, req)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.Error(t, err, "call %d", i)
		require.True(t, errors.IsType(err, errors.TypeStateNotSupported),
			"call %d classified as %v", i, err)
	}
}

func TestCalculateSupportedStateWithoutFilings(t *testing.T) {
	e := newTestEngine(t, false)

	// TX is a configured state but this manual files nothing for it.
	req := caRequest()
	req.State = "TX"

	for i := 0; i < 10; i++ {
		_, err := e.Calculate(context.Background(), req)
		require.Error(t, err)
		require.True(t, errors.IsType(err, errors.TypeStateNotSupported))
	}
}

func TestCalculateNoApprovedRate(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.Coverages = []types.CoverageType{types.CoverageComprehensive}

	_, err := e.Calculate(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeNoApprovedRate))
}

func TestCalculateUnknownZIP(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.ZIPCode = "11111"

	_, err := e.Calculate(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeTerritoryNotFound))
}

func TestCalculateOutOfBandAge(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.Drivers = []types.Driver{{Age: 15, YearsLicensed: 0}}

	_, err := e.Calculate(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeFactorLookup))
}

func TestCalculateInvalidRequest(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.ZIPCode = ""

	_, err := e.Calculate(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeInput))
}

func TestCalculateRejectedByBusinessRules(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.Vehicle.ModelYear = 1980

	_, err := e.Calculate(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeRuleViolation))

	violations := ViolationsFromError(err)
	require.NotEmpty(t, violations)
	require.Equal(t, "vehicle_eligibility", violations[0].RuleID)
	require.NotEmpty(t, violations[0].Remediation)
}

func TestCalculateWarningsRideAlong(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.Drivers[0].Violations = 3
	req.Drivers[0].CleanRecord = false

	result, err := e.Calculate(context.Background(), req)
	require.NoError(t, err, "warnings do not block finalization")
	require.True(t, result.HasWarnings())
	require.Equal(t, "driver_record", result.Violations[0].RuleID)
}

func TestCalculateRiskScoreOnResult(t *testing.T) {
	e := newTestEngine(t, false)

	result, err := e.Calculate(context.Background(), caRequest())
	require.NoError(t, err)
	require.Equal(t, 0, result.RiskScore, "a clean mature driver scores zero")
}

func TestCalculateHighRiskDriverWarning(t *testing.T) {
	e := newTestEngine(t, false)
	req := caRequest()
	req.Drivers = []types.Driver{
		{Age: 35, YearsLicensed: 12, Violations: 2, AtFaultClaims: 4},
	}

	result, err := e.Calculate(context.Background(), req)
	require.NoError(t, err, "a high risk score warns, never blocks")
	require.Equal(t, 96, result.RiskScore)
	require.True(t, result.HasWarnings())
	require.Equal(t, "risk_score", result.Violations[0].RuleID)
	require.Equal(t, types.SeverityWarning, result.Violations[0].Severity)
}

func TestCalculateQuoteCacheTransparency(t *testing.T) {
	e := newTestEngine(t, true)
	ctx := context.Background()

	first, err := e.Calculate(ctx, caRequest())
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := e.Calculate(ctx, caRequest())
	require.NoError(t, err)
	require.True(t, second.FromCache)
	require.True(t, first.TotalPremium.Equal(second.TotalPremium),
		"a cache hit prices identically to a fresh calculation")

	// A different request misses.
	req := caRequest()
	req.MultiPolicy = true
	third, err := e.Calculate(ctx, req)
	require.NoError(t, err)
	require.False(t, third.FromCache)
}

func TestCalculateConcurrent(t *testing.T) {
	e := newTestEngine(t, false)
	ctx := context.Background()

	want := decimal.RequireFromString("736.06")
	var wg sync.WaitGroup
	results := make([]*types.RatingResult, 100)
	errs := make([]error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = e.Calculate(ctx, caRequest())
		}(i)
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i].TotalPremium.Equal(want), "call %d priced %s", i, results[i].TotalPremium)
	}
}

func TestCalculateCancelledContext(t *testing.T) {
	e := newTestEngine(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Calculate(ctx, caRequest())
	require.Error(t, err)
	require.True(t, errors.IsType(err, errors.TypeCalculationTimeout))
}

func TestPhaseNames(t *testing.T) {
	require.Equal(t, "resolving", PhaseResolving.String())
	require.Equal(t, "computing", PhaseComputing.String())
	require.Equal(t, "validating", PhaseValidating.String())
	require.Equal(t, "finalized", PhaseFinalized.String())
	require.Equal(t, "rejected", PhaseRejected.String())
	require.Equal(t, "unknown", Phase(99).String())
}
