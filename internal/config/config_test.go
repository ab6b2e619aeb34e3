package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.SupportedStates = nil
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Rules.GlobalDiscountCap = 1.5
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Territory.CompositeCeiling = 0.9
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Validation.MaxFactorSwing = 0
	require.Error(t, cfg.Validate())
}

func TestStateSupported(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.StateSupported("CA"))
	require.True(t, cfg.StateSupported("ca"), "matching is case-insensitive")
	require.False(t, cfg.StateSupported("ZZ"))
}

func TestSortedStatesIsStable(t *testing.T) {
	cfg := &Config{SupportedStates: []string{"TX", "CA", "NY"}}
	require.Equal(t, []string{"CA", "NY", "TX"}, cfg.SortedStates())
	require.Equal(t, []string{"TX", "CA", "NY"}, cfg.SupportedStates, "sorting does not mutate the config")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().SupportedStates, cfg.SupportedStates)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rating.yaml")
	doc := `
supported_states: [CA, NV]
engine:
  latency_threshold_ms: 75
cache:
  quote_ttl_seconds: 60
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"CA", "NV"}, cfg.SupportedStates)
	require.Equal(t, 75, cfg.Engine.LatencyThresholdMs)
	require.Equal(t, time.Minute, cfg.Cache.QuoteTTL())
	require.Equal(t, 0.50, cfg.Rules.GlobalDiscountCap, "untouched sections keep defaults")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RATING_MANUAL_PATH", "/srv/rates/manual.yaml")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/srv/rates/manual.yaml", cfg.Repository.ManualPath)
}
