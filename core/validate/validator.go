// Package validate enforces regulatory and sanity constraints on a
// candidate result. Error-severity violations block finalization;
// warnings and infos ride along on the priced result.
package validate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"premium-rating/core/types"
	"premium-rating/internal/config"
)

// Candidate is the not-yet-finalized output the validator inspects
type Candidate struct {
	Request         *types.RatingRequest
	Table           *types.RateTable
	Territory       *types.TerritoryFactor
	Factors         *types.FactorSet
	Premium         decimal.Decimal
	ClampedToBounds bool

	// RiskScore is the 0-100 driver risk score for this request
	RiskScore int
}

// Validator runs the business rule checks
type Validator struct {
	cfg *config.ValidationConfig
}

// NewValidator creates a validator
func NewValidator(cfg *config.ValidationConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate inspects a candidate against the state rule set and returns
// every detected violation. The caller decides blocking from severity.
func (v *Validator) Validate(ctx context.Context, c *Candidate, stateRules *types.StateRuleSet) []types.Violation {
	var out []types.Violation

	out = append(out, v.checkFactorSwing(c)...)
	out = append(out, v.checkPremiumBounds(c)...)
	out = append(out, v.checkRequiredCoverages(c, stateRules)...)
	out = append(out, v.checkProhibitedFactors(c, stateRules)...)
	out = append(out, v.checkDriverEligibility(c, stateRules)...)
	out = append(out, v.checkVehicleEligibility(c, stateRules)...)
	out = append(out, v.checkRiskScore(c)...)

	return out
}

// checkRiskScore attaches an advisory warning for high-risk driver sets
func (v *Validator) checkRiskScore(c *Candidate) []types.Violation {
	if v.cfg.RiskScoreWarnAt <= 0 || c.RiskScore < v.cfg.RiskScoreWarnAt {
		return nil
	}
	return []types.Violation{{
		RuleID:   "risk_score",
		Severity: types.SeverityWarning,
		Message: fmt.Sprintf("driver risk score %d is at or above the review threshold of %d",
			c.RiskScore, v.cfg.RiskScoreWarnAt),
	}}
}

// checkFactorSwing flags any single factor moving premium beyond the
// configured multiple of base.
func (v *Validator) checkFactorSwing(c *Candidate) []types.Violation {
	maxSwing := decimal.NewFromFloat(v.cfg.MaxFactorSwing)

	// Fixed order so repeated validations report identically.
	type entry struct {
		name   string
		factor decimal.Decimal
	}
	factors := []entry{
		{string(types.FactorTerritory), c.Territory.Composite},
		{string(types.FactorDriver), c.Factors.Driver},
		{string(types.FactorVehicle), c.Factors.Vehicle},
	}
	if c.Factors.Credit != nil {
		factors = append(factors, entry{string(types.FactorCredit), *c.Factors.Credit})
	}

	var out []types.Violation
	for _, e := range factors {
		name, f := e.name, e.factor
		if f.GreaterThan(maxSwing) {
			out = append(out, types.Violation{
				RuleID:   "factor_swing",
				Severity: types.SeverityError,
				Message: fmt.Sprintf("%s factor %s exceeds the maximum swing of %sx base",
					name, f.String(), maxSwing.String()),
				Remediation: "review the filed factor tables; a single factor past the swing limit indicates bad reference data",
			})
		}
	}
	return out
}

// checkPremiumBounds verifies the premium landed inside the table's
// filed range. The rule engine clamps, so a breach here means a defect
// upstream and is always an error.
func (v *Validator) checkPremiumBounds(c *Candidate) []types.Violation {
	var out []types.Violation
	if c.Premium.LessThan(c.Table.MinPremium) || c.Premium.GreaterThan(c.Table.MaxPremium) {
		out = append(out, types.Violation{
			RuleID:   "premium_bounds",
			Severity: types.SeverityError,
			Message: fmt.Sprintf("premium %s is outside the filed range [%s, %s] of table %s",
				c.Premium.String(), c.Table.MinPremium.String(), c.Table.MaxPremium.String(), c.Table.ID),
			Remediation: "this is a rating defect; file a bug against the rating core",
		})
	}
	if c.ClampedToBounds {
		out = append(out, types.Violation{
			RuleID:   "premium_clamped",
			Severity: types.SeverityWarning,
			Message:  "computed premium was clamped into the filed range",
		})
	}
	return out
}

// checkRequiredCoverages verifies state-mandated coverages are selected
func (v *Validator) checkRequiredCoverages(c *Candidate, stateRules *types.StateRuleSet) []types.Violation {
	required := stateRules.RequiredCoverages[c.Request.Product]
	var out []types.Violation
	for _, cov := range required {
		if !c.Request.HasCoverage(cov) {
			out = append(out, types.Violation{
				RuleID:   "required_coverage",
				Severity: types.SeverityError,
				Message: fmt.Sprintf("state %s requires coverage %s for product %s",
					stateRules.State, cov, c.Request.Product),
				Remediation: fmt.Sprintf("add coverage %s to the quote", cov),
			})
		}
	}
	return out
}

// checkProhibitedFactors verifies no state-banned factor was applied
func (v *Validator) checkProhibitedFactors(c *Candidate, stateRules *types.StateRuleSet) []types.Violation {
	var out []types.Violation
	if stateRules.FactorProhibited(types.FactorCredit) && c.Factors.Credit != nil {
		out = append(out, types.Violation{
			RuleID:   "prohibited_factor",
			Severity: types.SeverityError,
			Message:  fmt.Sprintf("credit rating is prohibited in state %s but a credit factor was applied", stateRules.State),
			Remediation: "the factor calculator must skip the credit lookup in states that ban it",
		})
	}
	return out
}

// checkDriverEligibility verifies driver ages against the state floor
func (v *Validator) checkDriverEligibility(c *Candidate, stateRules *types.StateRuleSet) []types.Violation {
	var out []types.Violation
	for i, d := range c.Request.Drivers {
		if stateRules.MinDriverAge > 0 && d.Age < stateRules.MinDriverAge {
			out = append(out, types.Violation{
				RuleID:   "driver_eligibility",
				Severity: types.SeverityError,
				Message: fmt.Sprintf("driver %d is %d; state %s requires drivers to be at least %d",
					i+1, d.Age, stateRules.State, stateRules.MinDriverAge),
				Remediation: "remove the ineligible driver from the quote",
			})
		}
		if d.Violations >= 3 {
			out = append(out, types.Violation{
				RuleID:   "driver_record",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("driver %d has %d violations on record", i+1, d.Violations),
			})
		}
	}
	return out
}

// checkVehicleEligibility verifies vehicle age against the state limit
func (v *Validator) checkVehicleEligibility(c *Candidate, stateRules *types.StateRuleSet) []types.Violation {
	if stateRules.MaxVehicleAgeYears <= 0 {
		return nil
	}
	age := c.Request.EffectiveDate.Year() - c.Request.Vehicle.ModelYear
	if age <= stateRules.MaxVehicleAgeYears {
		return nil
	}
	return []types.Violation{{
		RuleID:   "vehicle_eligibility",
		Severity: types.SeverityError,
		Message: fmt.Sprintf("vehicle model year %d is %d years old; state %s limit is %d",
			c.Request.Vehicle.ModelYear, age, stateRules.State, stateRules.MaxVehicleAgeYears),
		Remediation: "the vehicle is too old to rate in this state",
	}}
}
