// Package config provides configuration management.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"premium-rating/internal/logging"
)

// Config is the main rating configuration
type Config struct {
	// Version is the configuration version
	Version string `yaml:"version"`

	// SupportedStates is the explicit list of states with a rate program.
	// State support is configured, never inferred from loaded data.
	SupportedStates []string `yaml:"supported_states"`

	// Territory contains territory compositing settings
	Territory TerritoryConfig `yaml:"territory"`

	// Rules contains discount/surcharge settings
	Rules RulesConfig `yaml:"rules"`

	// Validation contains business rule validation settings
	Validation ValidationConfig `yaml:"validation"`

	// Engine contains orchestration settings
	Engine EngineConfig `yaml:"engine"`

	// Cache contains cache settings
	Cache CacheConfig `yaml:"cache"`

	// Repository contains reference-data backend settings
	Repository RepositoryConfig `yaml:"repository"`

	// Logging contains logging configuration
	Logging logging.Config `yaml:"logging"`
}

// TerritoryConfig controls how the four peril sub-factors combine.
// Each weight scales a capped peril loading; the composite is itself capped.
type TerritoryConfig struct {
	// Weights per peril sub-factor
	CrimeWeight       float64 `yaml:"crime_weight"`
	WeatherWeight     float64 `yaml:"weather_weight"`
	TrafficWeight     float64 `yaml:"traffic_weight"`
	CatastropheWeight float64 `yaml:"catastrophe_weight"`

	// Caps per peril loading, applied before weighting
	CrimeCap       float64 `yaml:"crime_cap"`
	WeatherCap     float64 `yaml:"weather_cap"`
	TrafficCap     float64 `yaml:"traffic_cap"`
	CatastropheCap float64 `yaml:"catastrophe_cap"`

	// CompositeCeiling caps the combined territory factor
	CompositeCeiling float64 `yaml:"composite_ceiling"`
}

// RulesConfig controls discount/surcharge application
type RulesConfig struct {
	// GlobalDiscountCap is the maximum total stackable discount percentage (0.50 = 50%)
	GlobalDiscountCap float64 `yaml:"global_discount_cap"`
}

// ValidationConfig controls business rule validation
type ValidationConfig struct {
	// MaxFactorSwing is the largest multiple of base premium any single factor may contribute
	MaxFactorSwing float64 `yaml:"max_factor_swing"`

	// RiskScoreWarnAt attaches an advisory warning when the driver risk
	// score reaches this value (zero disables the check)
	RiskScoreWarnAt int `yaml:"risk_score_warn_at"`
}

// EngineConfig controls the rating orchestrator
type EngineConfig struct {
	// LatencyThresholdMs logs a performance violation when a quote exceeds it
	LatencyThresholdMs int `yaml:"latency_threshold_ms"`

	// QuoteCacheEnabled caches whole quote results
	QuoteCacheEnabled bool `yaml:"quote_cache_enabled"`
}

// CacheConfig contains cache-related settings
type CacheConfig struct {
	// Enabled enables caching; disabled degrades to direct computation
	Enabled bool `yaml:"enabled"`

	// ReadTimeoutMs bounds a cache read; an overrun counts as a miss
	ReadTimeoutMs int `yaml:"read_timeout_ms"`

	// RedisAddr selects the redis tier when set; empty means in-memory only
	RedisAddr string `yaml:"redis_addr"`

	// RedisDB is the redis database number
	RedisDB int `yaml:"redis_db"`

	// TTL per category, in seconds
	TerritoryTTLSeconds int `yaml:"territory_ttl_seconds"`
	RateTableTTLSeconds int `yaml:"rate_table_ttl_seconds"`
	RuleSetTTLSeconds   int `yaml:"rule_set_ttl_seconds"`
	QuoteTTLSeconds     int `yaml:"quote_ttl_seconds"`
	RiskScoreTTLSeconds int `yaml:"risk_score_ttl_seconds"`

	// JanitorSchedule is the cron spec for the expired-entry sweep
	JanitorSchedule string `yaml:"janitor_schedule"`
}

// RepositoryConfig contains reference-data backend settings
type RepositoryConfig struct {
	// ManualPath is the YAML rate manual path
	ManualPath string `yaml:"manual_path"`

	// SQLitePath is the SQLite rate store path
	SQLitePath string `yaml:"sqlite_path"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version:         "1.0",
		SupportedStates: []string{"CA", "TX", "NY", "FL", "IL", "PA", "OH", "GA", "NC", "MI"},
		Territory: TerritoryConfig{
			CrimeWeight:       0.25,
			WeatherWeight:     0.30,
			TrafficWeight:     0.15,
			CatastropheWeight: 0.30,
			CrimeCap:          0.10,
			WeatherCap:        0.15,
			TrafficCap:        0.08,
			CatastropheCap:    0.20,
			CompositeCeiling:  1.50,
		},
		Rules: RulesConfig{
			GlobalDiscountCap: 0.50,
		},
		Validation: ValidationConfig{
			MaxFactorSwing:  3.0,
			RiskScoreWarnAt: 70,
		},
		Engine: EngineConfig{
			LatencyThresholdMs: 50,
			QuoteCacheEnabled:  true,
		},
		Cache: CacheConfig{
			Enabled:             true,
			ReadTimeoutMs:       25,
			TerritoryTTLSeconds: 86400, // 24 hours
			RateTableTTLSeconds: 3600,  // 1 hour
			RuleSetTTLSeconds:   1800,  // 30 minutes
			QuoteTTLSeconds:     900,   // 15 minutes
			RiskScoreTTLSeconds: 300,   // 5 minutes
			JanitorSchedule:     "0 */5 * * * *",
		},
		Repository: RepositoryConfig{
			ManualPath: "rate_manual.yaml",
			SQLitePath: "rates.db",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a YAML file, then applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("RATING_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("RATING_MANUAL_PATH"); v != "" {
		cfg.Repository.ManualPath = v
	}
	if v := os.Getenv("RATING_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if len(c.SupportedStates) == 0 {
		return fmt.Errorf("supported_states must not be empty")
	}
	if c.Rules.GlobalDiscountCap <= 0 || c.Rules.GlobalDiscountCap > 1 {
		return fmt.Errorf("global_discount_cap must be in (0, 1], got %v", c.Rules.GlobalDiscountCap)
	}
	if c.Territory.CompositeCeiling < 1 {
		return fmt.Errorf("composite_ceiling must be >= 1, got %v", c.Territory.CompositeCeiling)
	}
	if c.Validation.MaxFactorSwing <= 0 {
		return fmt.Errorf("max_factor_swing must be positive, got %v", c.Validation.MaxFactorSwing)
	}
	return nil
}

// StateSupported reports whether a state has a configured rate program
func (c *Config) StateSupported(state string) bool {
	for _, s := range c.SupportedStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}

// SortedStates returns the supported states in sorted order for stable messages
func (c *Config) SortedStates() []string {
	out := make([]string, len(c.SupportedStates))
	copy(out, c.SupportedStates)
	sort.Strings(out)
	return out
}

// TerritoryTTL returns the territory cache TTL
func (c *CacheConfig) TerritoryTTL() time.Duration {
	return time.Duration(c.TerritoryTTLSeconds) * time.Second
}

// RateTableTTL returns the rate table cache TTL
func (c *CacheConfig) RateTableTTL() time.Duration {
	return time.Duration(c.RateTableTTLSeconds) * time.Second
}

// RuleSetTTL returns the rule set cache TTL
func (c *CacheConfig) RuleSetTTL() time.Duration {
	return time.Duration(c.RuleSetTTLSeconds) * time.Second
}

// QuoteTTL returns the whole-quote cache TTL
func (c *CacheConfig) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLSeconds) * time.Second
}

// RiskScoreTTL returns the risk score input cache TTL
func (c *CacheConfig) RiskScoreTTL() time.Duration {
	return time.Duration(c.RiskScoreTTLSeconds) * time.Second
}

// ReadTimeout returns the bounded cache read timeout
func (c *CacheConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
