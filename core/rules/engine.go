// Package rules applies ordered, capped discount and surcharge rules.
// Rules are data: a priority, a value, and an eligibility predicate
// evaluated uniformly. No per-rule code paths. This stage is pure
// arithmetic over already-resolved data; no I/O.
package rules

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"premium-rating/core/types"
	"premium-rating/internal/config"
	"premium-rating/internal/errors"
)

// Outcome is the result of discount/surcharge application
type Outcome struct {
	// Premium is the adjusted premium, clamped into the table bounds
	Premium decimal.Decimal

	// Discounts and Surcharges record what applied, in order
	Discounts  []types.AppliedAdjustment
	Surcharges []types.AppliedAdjustment

	// ClampedToBounds reports the total was pulled into [min, max] premium
	ClampedToBounds bool
}

// Engine applies adjustment rules
type Engine struct {
	cfg *config.RulesConfig
}

// NewEngine creates a rule engine
func NewEngine(cfg *config.RulesConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Apply filters, orders, and applies the rules to a candidate premium.
// Stackable percentage discounts accumulate up to the global cap; the
// rule crossing the cap is truncated to land exactly on it. Surcharges
// apply after discounts, each clamped to its own max_cap. The premium
// is finally clamped into the rate table's [min, max] bounds.
func (e *Engine) Apply(ctx context.Context, table *types.RateTable, candidate decimal.Decimal, req *types.RatingRequest, discounts, surcharges []*types.AdjustmentRule) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.TypeCalculationTimeout, "rule application cancelled", err)
	}

	attrs := req.Attributes()

	eligibleDiscounts := eligible(discounts, req, attrs)
	eligibleSurcharges := eligible(surcharges, req, attrs)

	premium := candidate
	out := &Outcome{}

	// Discounts. Percentage values are fractions of the candidate
	// premium, so stacked discounts reduce by exactly their sum.
	globalCap := decimal.NewFromFloat(e.cfg.GlobalDiscountCap)
	pctApplied := decimal.Zero
	appliedCategories := make(map[string]bool)

	for _, rule := range eligibleDiscounts {
		if skipCategory(rule, appliedCategories) {
			continue
		}

		var amount decimal.Decimal
		truncated := false

		switch rule.ValueType {
		case types.ValuePercentage:
			pct := rule.Value
			remaining := globalCap.Sub(pctApplied)
			if remaining.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if pct.GreaterThan(remaining) {
				pct = remaining
				truncated = true
			}
			amount = candidate.Mul(pct)
			if rule.MaxCap.IsPositive() && amount.GreaterThan(rule.MaxCap) {
				amount = rule.MaxCap
				truncated = true
				// Only the percentage actually delivered counts
				// toward the global cap.
				pct = amount.Div(candidate)
			}
			pctApplied = pctApplied.Add(pct)
		case types.ValueFixed:
			amount = rule.Value
			if rule.MaxCap.IsPositive() && amount.GreaterThan(rule.MaxCap) {
				amount = rule.MaxCap
				truncated = true
			}
		default:
			return nil, errors.Newf(errors.TypeInternal, "discount %s has unknown value type %q", rule.Code, rule.ValueType)
		}

		if amount.GreaterThan(premium) {
			amount = premium
			truncated = true
		}

		premium = premium.Sub(amount)
		markCategory(rule, appliedCategories)
		out.Discounts = append(out.Discounts, types.AppliedAdjustment{
			Code:        rule.Code,
			Description: rule.Description,
			Category:    rule.Category,
			Amount:      amount,
			Truncated:   truncated,
		})
	}

	// Surcharges, after discounts. Percentage values are fractions of
	// the post-discount premium.
	surchargeCategories := make(map[string]bool)
	postDiscount := premium

	for _, rule := range eligibleSurcharges {
		if skipCategory(rule, surchargeCategories) {
			continue
		}

		var amount decimal.Decimal
		truncated := false

		switch rule.ValueType {
		case types.ValuePercentage:
			amount = postDiscount.Mul(rule.Value)
		case types.ValueFixed:
			amount = rule.Value
		default:
			return nil, errors.Newf(errors.TypeInternal, "surcharge %s has unknown value type %q", rule.Code, rule.ValueType)
		}

		if rule.MaxCap.IsPositive() && amount.GreaterThan(rule.MaxCap) {
			amount = rule.MaxCap
			truncated = true
		}

		premium = premium.Add(amount)
		markCategory(rule, surchargeCategories)
		out.Surcharges = append(out.Surcharges, types.AppliedAdjustment{
			Code:        rule.Code,
			Description: rule.Description,
			Category:    rule.Category,
			Amount:      amount,
			Truncated:   truncated,
		})
	}

	// Premium bounds from the rate table.
	if premium.LessThan(table.MinPremium) {
		premium = table.MinPremium
		out.ClampedToBounds = true
	}
	if premium.GreaterThan(table.MaxPremium) {
		premium = table.MaxPremium
		out.ClampedToBounds = true
	}

	out.Premium = premium
	return out, nil
}

// eligible filters to active, applicable, predicate-passing rules and
// orders them deterministically by (priority, code).
func eligible(rulesIn []*types.AdjustmentRule, req *types.RatingRequest, attrs map[string]string) []*types.AdjustmentRule {
	var out []*types.AdjustmentRule
	for _, r := range rulesIn {
		if !r.ActiveAt(req.EffectiveDate) {
			continue
		}
		if !r.AppliesTo(strings.ToUpper(req.State), req.Product) {
			continue
		}
		if !Eligible(r, attrs) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// skipCategory reports whether a closed non-stackable category already
// consumed this rule's category
func skipCategory(rule *types.AdjustmentRule, applied map[string]bool) bool {
	return rule.Category != "" && applied[rule.Category]
}

// markCategory closes a category once a non-stackable rule applies
func markCategory(rule *types.AdjustmentRule, applied map[string]bool) {
	if !rule.Stackable && rule.Category != "" {
		applied[rule.Category] = true
	}
}

// Eligible evaluates a rule's predicate against the request attributes.
// Every condition must hold; a rule with no conditions always applies.
func Eligible(rule *types.AdjustmentRule, attrs map[string]string) bool {
	for _, cond := range rule.Conditions {
		if !holds(cond, attrs) {
			return false
		}
	}
	return true
}

func holds(cond types.Condition, attrs map[string]string) bool {
	actual, ok := attrs[cond.Attribute]
	if !ok {
		return false
	}
	switch cond.Operator {
	case "eq":
		return actual == cond.Value
	case "neq":
		return actual != cond.Value
	case "gte":
		a, errA := strconv.Atoi(actual)
		b, errB := strconv.Atoi(cond.Value)
		return errA == nil && errB == nil && a >= b
	case "lte":
		a, errA := strconv.Atoi(actual)
		b, errB := strconv.Atoi(cond.Value)
		return errA == nil && errB == nil && a <= b
	case "contains":
		return strings.Contains(actual, cond.Value)
	default:
		return false
	}
}
