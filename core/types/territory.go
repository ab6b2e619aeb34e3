package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TerritoryRecord is the filed geographic risk data for one ZIP.
// Peril loadings are expressed over 1.0 (0.04 = +4%); each is capped
// before weighting and the composite is capped again.
type TerritoryRecord struct {
	State       string      `json:"state"`
	ZIPCode     string      `json:"zip_code"`
	Product     ProductType `json:"product"`
	BaseFactor  decimal.Decimal `json:"base_factor"`
	EffectiveAt time.Time   `json:"effective_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`

	// Peril loadings
	CrimeLoading       decimal.Decimal `json:"crime_loading"`
	WeatherLoading     decimal.Decimal `json:"weather_loading"`
	TrafficLoading     decimal.Decimal `json:"traffic_loading"`
	CatastropheLoading decimal.Decimal `json:"catastrophe_loading"`
}

// ActiveAt reports whether the record is date-effective
func (r *TerritoryRecord) ActiveAt(asOf time.Time) bool {
	if asOf.Before(r.EffectiveAt) {
		return false
	}
	return r.ExpiresAt == nil || asOf.Before(*r.ExpiresAt)
}

// TerritoryFactor is the resolved composite geographic risk multiplier
type TerritoryFactor struct {
	State     string          `json:"state"`
	ZIPCode   string          `json:"zip_code"`
	Product   ProductType     `json:"product"`
	Composite decimal.Decimal `json:"composite"`

	// Capped contributions per peril, after weighting
	Contributions map[string]decimal.Decimal `json:"contributions"`

	// Capped reports whether the composite hit the configured ceiling
	Capped bool `json:"capped"`
}
