// Package territory resolves the composite geographic risk factor.
// Each peril loading is capped before weighting and the composite is
// capped again; there is no nearest-neighbor fallback for unknown ZIPs.
package territory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"premium-rating/core/repository"
	"premium-rating/core/types"
	"premium-rating/internal/config"
	"premium-rating/internal/errors"
)

// Manager resolves territory factors
type Manager struct {
	repo repository.Repository
	cfg  *config.TerritoryConfig
}

// NewManager creates a territory manager
func NewManager(repo repository.Repository, cfg *config.TerritoryConfig) *Manager {
	return &Manager{repo: repo, cfg: cfg}
}

// ResolveTerritory computes the composite factor for a ZIP.
// composite = base_factor * (1 + sum(weight_i * min(loading_i, cap_i))),
// clamped to the configured ceiling.
func (m *Manager) ResolveTerritory(ctx context.Context, state, zip string, product types.ProductType, asOf time.Time) (*types.TerritoryFactor, error) {
	records, err := m.repo.GetTerritoryRecords(ctx, state, zip, product)
	if err != nil {
		return nil, errors.Repository("territory lookup failed", err)
	}

	var active *types.TerritoryRecord
	for _, rec := range records {
		if !rec.ActiveAt(asOf) {
			continue
		}
		// Multiple effective records: the newest filing governs.
		if active == nil || rec.EffectiveAt.After(active.EffectiveAt) {
			active = rec
		}
	}
	if active == nil {
		return nil, errors.TerritoryNotFound(state, zip, string(product))
	}

	return m.composite(active), nil
}

// composite applies caps, weights, and the ceiling to a record
func (m *Manager) composite(rec *types.TerritoryRecord) *types.TerritoryFactor {
	perils := []struct {
		name    string
		loading decimal.Decimal
		weight  float64
		perilCap float64
	}{
		{"crime", rec.CrimeLoading, m.cfg.CrimeWeight, m.cfg.CrimeCap},
		{"weather", rec.WeatherLoading, m.cfg.WeatherWeight, m.cfg.WeatherCap},
		{"traffic", rec.TrafficLoading, m.cfg.TrafficWeight, m.cfg.TrafficCap},
		{"catastrophe", rec.CatastropheLoading, m.cfg.CatastropheWeight, m.cfg.CatastropheCap},
	}

	contributions := make(map[string]decimal.Decimal, len(perils))
	loadingSum := decimal.Zero
	for _, p := range perils {
		loading := p.loading
		if loading.IsNegative() {
			loading = decimal.Zero
		}
		perilCap := decimal.NewFromFloat(p.perilCap)
		if loading.GreaterThan(perilCap) {
			loading = perilCap
		}
		contribution := loading.Mul(decimal.NewFromFloat(p.weight))
		contributions[p.name] = contribution
		loadingSum = loadingSum.Add(contribution)
	}

	composite := rec.BaseFactor.Mul(decimal.NewFromInt(1).Add(loadingSum))

	capped := false
	ceiling := decimal.NewFromFloat(m.cfg.CompositeCeiling)
	if composite.GreaterThan(ceiling) {
		composite = ceiling
		capped = true
	}

	return &types.TerritoryFactor{
		State:         rec.State,
		ZIPCode:       rec.ZIPCode,
		Product:       rec.Product,
		Composite:     composite,
		Contributions: contributions,
		Capped:        capped,
	}
}
