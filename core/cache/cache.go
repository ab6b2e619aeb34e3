// Package cache provides the multi-tier rating cache.
// The cache is an optimization, never a correctness dependency: any
// backend failure or timeout counts as a miss and is logged, not surfaced.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"premium-rating/internal/config"
	"premium-rating/internal/logging"
	"premium-rating/internal/metrics"
)

// Category identifies a cached data class; each carries its own TTL
type Category string

const (
	// CategoryTerritory caches resolved territory data (24h)
	CategoryTerritory Category = "territory"

	// CategoryRateTable caches base rate tables (1h)
	CategoryRateTable Category = "base_rate"

	// CategoryRules caches discount/surcharge rule sets (30m)
	CategoryRules Category = "rules"

	// CategoryQuote caches whole quote results (15m)
	CategoryQuote Category = "quote"

	// CategoryRiskScore caches risk score inputs (5m)
	CategoryRiskScore Category = "risk_score"
)

// TTL returns the configured TTL for the category
func (c Category) TTL(cfg *config.CacheConfig) time.Duration {
	switch c {
	case CategoryTerritory:
		return cfg.TerritoryTTL()
	case CategoryRateTable:
		return cfg.RateTableTTL()
	case CategoryRules:
		return cfg.RuleSetTTL()
	case CategoryQuote:
		return cfg.QuoteTTL()
	case CategoryRiskScore:
		return cfg.RiskScoreTTL()
	default:
		return time.Minute
	}
}

// Store is a cache backend. Implementations must support concurrent
// readers without blocking them on writers.
type Store interface {
	// Get retrieves raw bytes; the second return is the hit flag
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores raw bytes with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeletePrefix removes all keys with the given prefix
	DeletePrefix(ctx context.Context, prefix string) error
}

// Cache is the category-aware facade over a Store. Reads are bounded
// by the configured timeout; an overrun is a miss.
type Cache struct {
	store   Store
	cfg     *config.CacheConfig
	enabled bool
}

// New creates a cache over a backend store
func New(store Store, cfg *config.CacheConfig) *Cache {
	return &Cache{store: store, cfg: cfg, enabled: cfg.Enabled && store != nil}
}

// Disabled returns a cache that always misses
func Disabled() *Cache {
	cfg := &config.Default().Cache
	return &Cache{store: nil, cfg: cfg, enabled: false}
}

// Enabled reports whether the cache is active
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Key builds a deterministic cache key from the category's natural
// identity parts plus an effective-date bucket so stale entries age out.
func Key(cat Category, bucket string, parts ...string) string {
	key := string(cat)
	for _, p := range parts {
		key += ":" + p
	}
	return key + ":" + bucket
}

// DateBucket formats a date to the bucket granularity (one day)
func DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Get retrieves raw bytes for a key. Backend errors and timeouts
// degrade to a miss and are logged as cache unavailability.
func (c *Cache) Get(ctx context.Context, cat Category, key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	readCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout())
	defer cancel()

	data, hit, err := c.store.Get(readCtx, key)
	if err != nil {
		logging.Warn("cache unavailable, degrading to direct computation",
			zap.String("category", string(cat)), zap.Error(err))
		metrics.CacheMisses.WithLabelValues(string(cat)).Inc()
		return nil, false
	}
	if !hit {
		metrics.CacheMisses.WithLabelValues(string(cat)).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(string(cat)).Inc()
	return data, true
}

// Put stores raw bytes under the category's TTL. Write failures are
// logged and swallowed.
func (c *Cache) Put(ctx context.Context, cat Category, key string, value []byte) {
	if !c.enabled {
		return
	}
	if err := c.store.Set(ctx, key, value, cat.TTL(c.cfg)); err != nil {
		logging.Warn("cache write failed",
			zap.String("category", string(cat)), zap.Error(err))
	}
}

// Invalidate removes all entries in a category matching the key prefix.
// Called when an admin process updates the underlying reference data.
func (c *Cache) Invalidate(ctx context.Context, cat Category, keyPrefix string) error {
	if !c.enabled {
		return nil
	}
	return c.store.DeletePrefix(ctx, string(cat)+":"+keyPrefix)
}

// GetTyped retrieves and decodes a cached value
func GetTyped[T any](ctx context.Context, c *Cache, cat Category, key string) (*T, bool) {
	data, hit := c.Get(ctx, cat, key)
	if !hit {
		return nil, false
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		logging.Warn("cache entry decode failed, treating as miss",
			zap.String("category", string(cat)), zap.Error(err))
		return nil, false
	}
	return &out, true
}

// PutTyped encodes and stores a value
func PutTyped[T any](ctx context.Context, c *Cache, cat Category, key string, value *T) {
	if !c.enabled {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		logging.Warn("cache entry encode failed",
			zap.String("category", string(cat)), zap.Error(err))
		return
	}
	c.Put(ctx, cat, key, data)
}
