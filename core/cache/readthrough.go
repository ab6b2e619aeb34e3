// Read-through caching decorator at the repository boundary.
// Pricing logic stays cache-free; this wrapper is the only place cache
// and repository meet. Concurrent misses for one key are deduplicated.
package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"premium-rating/core/repository"
	"premium-rating/core/types"
)

// CachedRepository wraps a Repository with read-through caching.
// Keys lead with the state so admin invalidation can prefix-match.
type CachedRepository struct {
	inner repository.Repository
	cache *Cache
	group singleflight.Group

	// now is injectable for tests
	now func() time.Time
}

// NewCachedRepository wraps a repository with the cache tier
func NewCachedRepository(inner repository.Repository, c *Cache) *CachedRepository {
	return &CachedRepository{inner: inner, cache: c, now: time.Now}
}

// HasState passes through uncached; the supported-state check is
// config-driven and the underlying lookup is an index read.
func (r *CachedRepository) HasState(ctx context.Context, state string) (bool, error) {
	return r.inner.HasState(ctx, state)
}

// GetRateTables reads through the base_rate category (1h TTL)
func (r *CachedRepository) GetRateTables(ctx context.Context, state string, product types.ProductType, coverage types.CoverageType) ([]*types.RateTable, error) {
	key := Key(CategoryRateTable, DateBucket(r.now()), state, string(product), string(coverage))
	return readThrough(ctx, r, CategoryRateTable, key, func() ([]*types.RateTable, error) {
		return r.inner.GetRateTables(ctx, state, product, coverage)
	})
}

// ListCoverages reads through the base_rate category
func (r *CachedRepository) ListCoverages(ctx context.Context, state string, product types.ProductType) ([]types.CoverageType, error) {
	key := Key(CategoryRateTable, DateBucket(r.now()), state, string(product), "coverages")
	return readThrough(ctx, r, CategoryRateTable, key, func() ([]types.CoverageType, error) {
		return r.inner.ListCoverages(ctx, state, product)
	})
}

// GetTerritoryRecords reads through the territory category (24h TTL)
func (r *CachedRepository) GetTerritoryRecords(ctx context.Context, state, zip string, product types.ProductType) ([]*types.TerritoryRecord, error) {
	key := Key(CategoryTerritory, DateBucket(r.now()), state, zip, string(product))
	return readThrough(ctx, r, CategoryTerritory, key, func() ([]*types.TerritoryRecord, error) {
		return r.inner.GetTerritoryRecords(ctx, state, zip, product)
	})
}

// ListDiscountRules reads through the rules category (30m TTL)
func (r *CachedRepository) ListDiscountRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	key := Key(CategoryRules, DateBucket(r.now()), state, string(product), "discount")
	return readThrough(ctx, r, CategoryRules, key, func() ([]*types.AdjustmentRule, error) {
		return r.inner.ListDiscountRules(ctx, state, product)
	})
}

// ListSurchargeRules reads through the rules category (30m TTL)
func (r *CachedRepository) ListSurchargeRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	key := Key(CategoryRules, DateBucket(r.now()), state, string(product), "surcharge")
	return readThrough(ctx, r, CategoryRules, key, func() ([]*types.AdjustmentRule, error) {
		return r.inner.ListSurchargeRules(ctx, state, product)
	})
}

// GetStateRules reads through the rules category
func (r *CachedRepository) GetStateRules(ctx context.Context, state string) (*types.StateRuleSet, error) {
	key := Key(CategoryRules, DateBucket(r.now()), state, "state_rules")
	out, err := readThrough(ctx, r, CategoryRules, key, func() ([]*types.StateRuleSet, error) {
		sr, err := r.inner.GetStateRules(ctx, state)
		if err != nil {
			return nil, err
		}
		return []*types.StateRuleSet{sr}, nil
	})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ContentHash identifies the underlying snapshot
func (r *CachedRepository) ContentHash() string {
	return r.inner.ContentHash()
}

// InvalidateState drops all cached entries for one state across the
// reference-data categories. Quote entries are keyed by fingerprint,
// not state, so they age out on their own short TTL instead.
func (r *CachedRepository) InvalidateState(ctx context.Context, state string) error {
	for _, cat := range []Category{CategoryRateTable, CategoryTerritory, CategoryRules} {
		if err := r.cache.Invalidate(ctx, cat, state); err != nil {
			return err
		}
	}
	return nil
}

// readThrough is the shared miss-fill path with stampede suppression
func readThrough[T any](ctx context.Context, r *CachedRepository, cat Category, key string, fill func() ([]T, error)) ([]T, error) {
	if cached, hit := GetTyped[[]T](ctx, r.cache, cat, key); hit {
		return *cached, nil
	}

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		values, err := fill()
		if err != nil {
			return nil, err
		}
		PutTyped(ctx, r.cache, cat, key, &values)
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]T), nil
}
