package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"premium-rating/core/repository"
	"premium-rating/core/types"
	"premium-rating/internal/config"
)

const readthroughManual = `
rate_tables:
  - id: CA-AUTO-LIAB-2026
    state: CA
    product: auto
    coverage: liability
    status: approved
    base_rate: "850.00"
    min_premium: "300.00"
    max_premium: "5000.00"
    effective_at: 2026-01-01T00:00:00Z
territories:
  - state: CA
    zip_code: "90210"
    product: auto
    base_factor: "1.10"
    crime_loading: "0.06"
    weather_loading: "0.04"
    traffic_loading: "0.05"
    catastrophe_loading: "0.05"
    effective_at: 2026-01-01T00:00:00Z
discount_rules:
  - code: SAFE_DRIVER
    category: driver
    products: [auto]
    value_type: percentage
    value: "0.15"
    stackable: true
    priority: 10
    effective_at: 2026-01-01T00:00:00Z
state_rules:
  - state: CA
    prohibited_factors: [credit]
    min_driver_age: 16
`

// countingRepo counts how many reads reach the inner repository.
type countingRepo struct {
	inner *repository.Manual
	calls atomic.Int64
}

func (c *countingRepo) HasState(ctx context.Context, state string) (bool, error) {
	return c.inner.HasState(ctx, state)
}

func (c *countingRepo) GetRateTables(ctx context.Context, state string, product types.ProductType, coverage types.CoverageType) ([]*types.RateTable, error) {
	c.calls.Add(1)
	return c.inner.GetRateTables(ctx, state, product, coverage)
}

func (c *countingRepo) ListCoverages(ctx context.Context, state string, product types.ProductType) ([]types.CoverageType, error) {
	c.calls.Add(1)
	return c.inner.ListCoverages(ctx, state, product)
}

func (c *countingRepo) GetTerritoryRecords(ctx context.Context, state, zip string, product types.ProductType) ([]*types.TerritoryRecord, error) {
	c.calls.Add(1)
	return c.inner.GetTerritoryRecords(ctx, state, zip, product)
}

func (c *countingRepo) ListDiscountRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	c.calls.Add(1)
	return c.inner.ListDiscountRules(ctx, state, product)
}

func (c *countingRepo) ListSurchargeRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	c.calls.Add(1)
	return c.inner.ListSurchargeRules(ctx, state, product)
}

func (c *countingRepo) GetStateRules(ctx context.Context, state string) (*types.StateRuleSet, error) {
	c.calls.Add(1)
	return c.inner.GetStateRules(ctx, state)
}

func (c *countingRepo) ContentHash() string {
	return c.inner.ContentHash()
}

func newCachedRepo(t *testing.T) (*CachedRepository, *countingRepo) {
	t.Helper()
	manual, err := repository.ParseManual([]byte(readthroughManual))
	require.NoError(t, err)

	counting := &countingRepo{inner: manual}
	store := newTestStore(t)
	cfg := config.Default().Cache
	return NewCachedRepository(counting, New(store, &cfg)), counting
}

func TestReadThroughFillsOnce(t *testing.T) {
	repo, counting := newCachedRepo(t)
	ctx := context.Background()

	first, err := repo.GetRateTables(ctx, "CA", types.ProductAuto, types.CoverageLiability)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, int64(1), counting.calls.Load())

	second, err := repo.GetRateTables(ctx, "CA", types.ProductAuto, types.CoverageLiability)
	require.NoError(t, err)
	require.Equal(t, int64(1), counting.calls.Load(), "second read served from cache")
	require.Equal(t, first[0].ID, second[0].ID)
	require.True(t, first[0].BaseRate.Equal(second[0].BaseRate), "cached and direct reads price identically")
}

func TestReadThroughDistinctKeys(t *testing.T) {
	repo, counting := newCachedRepo(t)
	ctx := context.Background()

	_, err := repo.ListDiscountRules(ctx, "CA", types.ProductAuto)
	require.NoError(t, err)
	_, err = repo.ListSurchargeRules(ctx, "CA", types.ProductAuto)
	require.NoError(t, err)
	require.Equal(t, int64(2), counting.calls.Load(), "discounts and surcharges cache separately")
}

func TestReadThroughStateRules(t *testing.T) {
	repo, counting := newCachedRepo(t)
	ctx := context.Background()

	sr, err := repo.GetStateRules(ctx, "CA")
	require.NoError(t, err)
	require.True(t, sr.FactorProhibited(types.FactorCredit))

	sr, err = repo.GetStateRules(ctx, "CA")
	require.NoError(t, err)
	require.True(t, sr.FactorProhibited(types.FactorCredit))
	require.Equal(t, int64(1), counting.calls.Load())
}

func TestReadThroughConcurrentMissesDeduplicated(t *testing.T) {
	repo, counting := newCachedRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.GetTerritoryRecords(ctx, "CA", "90210", types.ProductAuto)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, counting.calls.Load(), int64(2),
		"stampeding misses collapse to at most a couple of fills")
}

func TestInvalidateStateDropsReferenceData(t *testing.T) {
	repo, counting := newCachedRepo(t)
	ctx := context.Background()

	_, err := repo.GetRateTables(ctx, "CA", types.ProductAuto, types.CoverageLiability)
	require.NoError(t, err)
	_, err = repo.GetTerritoryRecords(ctx, "CA", "90210", types.ProductAuto)
	require.NoError(t, err)
	require.Equal(t, int64(2), counting.calls.Load())

	require.NoError(t, repo.InvalidateState(ctx, "CA"))

	_, err = repo.GetRateTables(ctx, "CA", types.ProductAuto, types.CoverageLiability)
	require.NoError(t, err)
	require.Equal(t, int64(3), counting.calls.Load(), "invalidation forces a fresh fill")
}

func TestCachedRepositoryContentHashPassesThrough(t *testing.T) {
	repo, counting := newCachedRepo(t)
	require.Equal(t, counting.ContentHash(), repo.ContentHash())
}
