package types

import (
	"github.com/shopspring/decimal"
)

// FactorSet holds the resolved multipliers for one calculation
type FactorSet struct {
	Driver  decimal.Decimal `json:"driver"`
	Vehicle decimal.Decimal `json:"vehicle"`

	// Credit is nil when the state prohibits credit rating
	Credit *decimal.Decimal `json:"credit,omitempty"`
}

// Combined multiplies the present factors together
func (f *FactorSet) Combined() decimal.Decimal {
	out := f.Driver.Mul(f.Vehicle)
	if f.Credit != nil {
		out = out.Mul(*f.Credit)
	}
	return out
}

// AppliedAdjustment records one discount or surcharge that was applied
type AppliedAdjustment struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"` // positive magnitude in currency
	Truncated   bool            `json:"truncated"` // clipped by the global cap or max_cap
}

// Violation is one detected business rule breach
type Violation struct {
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Remediation string   `json:"remediation,omitempty"`
}

// Blocking reports whether the violation prevents finalization
func (v Violation) Blocking() bool {
	return v.Severity == SeverityError
}

// RatingResult is the finalized output of one calculation.
// Produced fresh per request and never mutated after return.
type RatingResult struct {
	QuoteID string `json:"quote_id"`

	// Pricing inputs
	RateTableID   string `json:"rate_table_id"`
	RateTableHash string `json:"rate_table_hash"`

	// Premium breakdown
	BasePremium     decimal.Decimal            `json:"base_premium"`
	TerritoryFactor decimal.Decimal            `json:"territory_factor"`
	AppliedFactors  map[string]decimal.Decimal `json:"applied_factors"`
	Discounts       []AppliedAdjustment        `json:"discounts"`
	Surcharges      []AppliedAdjustment        `json:"surcharges"`
	TotalPremium    decimal.Decimal            `json:"total_premium"`

	// ClampedToBounds reports the total was pulled into [min, max] premium
	ClampedToBounds bool `json:"clamped_to_bounds"`

	// RiskScore is the 0-100 driver risk score computed for the request
	RiskScore int `json:"risk_score"`

	// Non-blocking violations attached to a successful result
	Violations []Violation `json:"violations,omitempty"`

	// ComputeTimeMs is the wall-clock calculation time
	ComputeTimeMs int64 `json:"compute_time_ms"`

	// FromCache marks a whole-quote cache hit
	FromCache bool `json:"from_cache"`
}

// HasWarnings reports whether any non-blocking violations are attached
func (r *RatingResult) HasWarnings() bool {
	return len(r.Violations) > 0
}
