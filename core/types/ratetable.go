package types

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RateTable is the approved base pricing record for one
// (state, product, coverage) combination. IMMUTABLE once approved;
// admin updates produce a new effective-dated record instead.
type RateTable struct {
	ID           string       `json:"id"`
	State        string       `json:"state"`
	Product      ProductType  `json:"product"`
	Coverage     CoverageType `json:"coverage"`
	Status       TableStatus  `json:"status"`
	ApprovalID   string       `json:"approval_id"`
	BaseRate     decimal.Decimal `json:"base_rate"`
	MinPremium   decimal.Decimal `json:"min_premium"`
	MaxPremium   decimal.Decimal `json:"max_premium"`
	EffectiveAt  time.Time    `json:"effective_at"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`

	// Embedded factor lookup tables
	DriverAgeBands    []AgeBand        `json:"driver_age_bands"`
	ExperienceBands   []ExperienceBand `json:"experience_bands"`
	VehicleTypeFactor map[string]decimal.Decimal `json:"vehicle_type_factor"`
	SafetyCredits     map[string]decimal.Decimal `json:"safety_credits"`
	CreditTierFactor  map[string]decimal.Decimal `json:"credit_tier_factor"`
}

// AgeBand maps a driver age range to a factor.
// A nil MaxAge declares an open-ended top band.
type AgeBand struct {
	MinAge int             `json:"min_age"`
	MaxAge *int            `json:"max_age,omitempty"`
	Factor decimal.Decimal `json:"factor"`
}

// Contains reports whether an age falls inside the band
func (b AgeBand) Contains(age int) bool {
	if age < b.MinAge {
		return false
	}
	return b.MaxAge == nil || age <= *b.MaxAge
}

// ExperienceBand maps licensed years to a factor.
// A nil MaxYears declares an open-ended top band.
type ExperienceBand struct {
	MinYears int             `json:"min_years"`
	MaxYears *int            `json:"max_years,omitempty"`
	Factor   decimal.Decimal `json:"factor"`
}

// Contains reports whether a year count falls inside the band
func (b ExperienceBand) Contains(years int) bool {
	if years < b.MinYears {
		return false
	}
	return b.MaxYears == nil || years <= *b.MaxYears
}

// ActiveAt reports whether the table is approved and date-effective
func (t *RateTable) ActiveAt(asOf time.Time) bool {
	if t.Status != StatusApproved {
		return false
	}
	if asOf.Before(t.EffectiveAt) {
		return false
	}
	return t.ExpiresAt == nil || asOf.Before(*t.ExpiresAt)
}

// ContentHash returns a deterministic hash of the table's pricing identity.
// Recorded on results so a quote can name the exact data it priced against.
func (t *RateTable) ContentHash() string {
	h := sha256.New()
	h.Write([]byte(t.State))
	h.Write([]byte(t.Product))
	h.Write([]byte(t.Coverage))
	h.Write([]byte(t.ApprovalID))
	h.Write([]byte(t.BaseRate.String()))
	h.Write([]byte(t.MinPremium.String()))
	h.Write([]byte(t.MaxPremium.String()))
	h.Write([]byte(t.EffectiveAt.UTC().Format(time.RFC3339)))
	for _, b := range t.DriverAgeBands {
		h.Write([]byte(b.Factor.String()))
	}
	for _, b := range t.ExperienceBands {
		h.Write([]byte(b.Factor.String()))
	}
	for _, k := range sortedKeys(t.VehicleTypeFactor) {
		h.Write([]byte(k + "=" + t.VehicleTypeFactor[k].String()))
	}
	for _, k := range sortedKeys(t.SafetyCredits) {
		h.Write([]byte(k + "=" + t.SafetyCredits[k].String()))
	}
	for _, k := range sortedKeys(t.CreditTierFactor) {
		h.Write([]byte(k + "=" + t.CreditTierFactor[k].String()))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
