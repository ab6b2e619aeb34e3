package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValueType distinguishes percentage and fixed-amount adjustments
type ValueType string

const (
	// ValuePercentage adjusts by a fraction of the candidate premium
	ValuePercentage ValueType = "percentage"

	// ValueFixed adjusts by a fixed currency amount
	ValueFixed ValueType = "fixed"
)

// Condition is one clause of a rule's eligibility predicate,
// evaluated against the request attribute map. Rules are data, not code.
type Condition struct {
	Attribute string `yaml:"attribute" json:"attribute"`
	Operator  string `yaml:"operator" json:"operator"` // eq, neq, gte, lte, contains
	Value     string `yaml:"value" json:"value"`
}

// AdjustmentRule is a discount or surcharge rule. Priority is a total
// order (lower applies first); non-stackable rules are mutually exclusive
// within their category and the first eligible one by priority wins.
type AdjustmentRule struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Products    []ProductType   `json:"products"`
	States      []string        `json:"states"` // empty = all states
	ValueType   ValueType       `json:"value_type"`
	Value       decimal.Decimal `json:"value"`
	MaxCap      decimal.Decimal `json:"max_cap"` // zero = uncapped
	Stackable   bool            `json:"stackable"`
	Priority    int             `json:"priority"`
	Conditions  []Condition     `json:"conditions"`
	EffectiveAt time.Time       `json:"effective_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// ActiveAt reports whether the rule is date-effective
func (r *AdjustmentRule) ActiveAt(asOf time.Time) bool {
	if asOf.Before(r.EffectiveAt) {
		return false
	}
	return r.ExpiresAt == nil || asOf.Before(*r.ExpiresAt)
}

// AppliesTo reports whether the rule covers a state/product combination
func (r *AdjustmentRule) AppliesTo(state string, product ProductType) bool {
	if len(r.Products) > 0 {
		found := false
		for _, p := range r.Products {
			if p == product {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(r.States) == 0 {
		return true
	}
	for _, s := range r.States {
		if s == state {
			return true
		}
	}
	return false
}

// StateRuleSet holds the regulatory constraints for one state
type StateRuleSet struct {
	State string `yaml:"state" json:"state"`

	// ProhibitedFactors are rating factors banned by the state
	// (e.g. credit scoring in CA, HI, MA)
	ProhibitedFactors []RatingFactor `yaml:"prohibited_factors" json:"prohibited_factors"`

	// RequiredCoverages must be present on every policy, per product
	RequiredCoverages map[ProductType][]CoverageType `yaml:"required_coverages" json:"required_coverages"`

	// MinDriverAge is the youngest ratable driver
	MinDriverAge int `yaml:"min_driver_age" json:"min_driver_age"`

	// MaxVehicleAgeYears rejects vehicles older than this (zero = no limit)
	MaxVehicleAgeYears int `yaml:"max_vehicle_age_years" json:"max_vehicle_age_years"`
}

// FactorProhibited reports whether a rating factor is banned in the state
func (s *StateRuleSet) FactorProhibited(f RatingFactor) bool {
	for _, p := range s.ProhibitedFactors {
		if p == f {
			return true
		}
	}
	return false
}
