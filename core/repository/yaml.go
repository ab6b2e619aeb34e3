// Rate manual repository backed by a YAML document.
// Monetary values are strings in the manual; floats never touch premium math.
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"premium-rating/core/types"
	"premium-rating/internal/errors"
)

// Manual is an in-memory Repository loaded from a YAML rate manual.
// Immutable after load; admin updates ship a new manual.
type Manual struct {
	hash        string
	tables      map[string][]*types.RateTable      // state|product|coverage
	territories map[string][]*types.TerritoryRecord // state|zip|product
	discounts   []*types.AdjustmentRule
	surcharges  []*types.AdjustmentRule
	stateRules  map[string]*types.StateRuleSet
	states      map[string]bool
}

type manualDoc struct {
	RateTables     []rateTableDoc     `yaml:"rate_tables"`
	Territories    []territoryDoc     `yaml:"territories"`
	DiscountRules  []adjustmentDoc    `yaml:"discount_rules"`
	SurchargeRules []adjustmentDoc    `yaml:"surcharge_rules"`
	StateRules     []types.StateRuleSet `yaml:"state_rules"`
}

type rateTableDoc struct {
	ID          string     `yaml:"id"`
	State       string     `yaml:"state"`
	Product     string     `yaml:"product"`
	Coverage    string     `yaml:"coverage"`
	Status      string     `yaml:"status"`
	ApprovalID  string     `yaml:"approval_id"`
	BaseRate    string     `yaml:"base_rate"`
	MinPremium  string     `yaml:"min_premium"`
	MaxPremium  string     `yaml:"max_premium"`
	EffectiveAt time.Time  `yaml:"effective_at"`
	ExpiresAt   *time.Time `yaml:"expires_at"`

	DriverAgeBands []struct {
		MinAge int    `yaml:"min_age"`
		MaxAge *int   `yaml:"max_age"`
		Factor string `yaml:"factor"`
	} `yaml:"driver_age_bands"`
	ExperienceBands []struct {
		MinYears int    `yaml:"min_years"`
		MaxYears *int   `yaml:"max_years"`
		Factor   string `yaml:"factor"`
	} `yaml:"experience_bands"`
	VehicleTypeFactor map[string]string `yaml:"vehicle_type_factor"`
	SafetyCredits     map[string]string `yaml:"safety_credits"`
	CreditTierFactor  map[string]string `yaml:"credit_tier_factor"`
}

type territoryDoc struct {
	State              string     `yaml:"state"`
	ZIPCode            string     `yaml:"zip_code"`
	Product            string     `yaml:"product"`
	BaseFactor         string     `yaml:"base_factor"`
	CrimeLoading       string     `yaml:"crime_loading"`
	WeatherLoading     string     `yaml:"weather_loading"`
	TrafficLoading     string     `yaml:"traffic_loading"`
	CatastropheLoading string     `yaml:"catastrophe_loading"`
	EffectiveAt        time.Time  `yaml:"effective_at"`
	ExpiresAt          *time.Time `yaml:"expires_at"`
}

type adjustmentDoc struct {
	Code        string            `yaml:"code"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Products    []string          `yaml:"products"`
	States      []string          `yaml:"states"`
	ValueType   string            `yaml:"value_type"`
	Value       string            `yaml:"value"`
	MaxCap      string            `yaml:"max_cap"`
	Stackable   bool              `yaml:"stackable"`
	Priority    int               `yaml:"priority"`
	Conditions  []types.Condition `yaml:"conditions"`
	EffectiveAt time.Time         `yaml:"effective_at"`
	ExpiresAt   *time.Time        `yaml:"expires_at"`
}

// LoadManual reads and indexes a YAML rate manual
func LoadManual(path string) (*Manual, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Repository(fmt.Sprintf("read rate manual %s", path), err)
	}
	return ParseManual(data)
}

// ParseManual parses a YAML rate manual from bytes
func ParseManual(data []byte) (*Manual, error) {
	var doc manualDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Repository("parse rate manual", err)
	}

	sum := sha256.Sum256(data)
	m := &Manual{
		hash:        hex.EncodeToString(sum[:8]),
		tables:      make(map[string][]*types.RateTable),
		territories: make(map[string][]*types.TerritoryRecord),
		stateRules:  make(map[string]*types.StateRuleSet),
		states:      make(map[string]bool),
	}

	for i := range doc.RateTables {
		t, err := doc.RateTables[i].build()
		if err != nil {
			return nil, err
		}
		key := tableKey(t.State, t.Product, t.Coverage)
		m.tables[key] = append(m.tables[key], t)
		m.states[t.State] = true
	}

	for i := range doc.Territories {
		r, err := doc.Territories[i].build()
		if err != nil {
			return nil, err
		}
		key := territoryKey(r.State, r.ZIPCode, r.Product)
		m.territories[key] = append(m.territories[key], r)
	}

	for i := range doc.DiscountRules {
		r, err := doc.DiscountRules[i].build()
		if err != nil {
			return nil, err
		}
		m.discounts = append(m.discounts, r)
	}
	for i := range doc.SurchargeRules {
		r, err := doc.SurchargeRules[i].build()
		if err != nil {
			return nil, err
		}
		m.surcharges = append(m.surcharges, r)
	}

	for i := range doc.StateRules {
		sr := doc.StateRules[i]
		sr.State = strings.ToUpper(sr.State)
		m.stateRules[sr.State] = &sr
	}

	return m, nil
}

func (d *rateTableDoc) build() (*types.RateTable, error) {
	base, err := parseDec(d.BaseRate, d.ID, "base_rate")
	if err != nil {
		return nil, err
	}
	min, err := parseDec(d.MinPremium, d.ID, "min_premium")
	if err != nil {
		return nil, err
	}
	max, err := parseDec(d.MaxPremium, d.ID, "max_premium")
	if err != nil {
		return nil, err
	}

	t := &types.RateTable{
		ID:          d.ID,
		State:       strings.ToUpper(d.State),
		Product:     types.ProductType(d.Product),
		Coverage:    types.CoverageType(d.Coverage),
		Status:      types.TableStatus(d.Status),
		ApprovalID:  d.ApprovalID,
		BaseRate:    base,
		MinPremium:  min,
		MaxPremium:  max,
		EffectiveAt: d.EffectiveAt,
		ExpiresAt:   d.ExpiresAt,
	}

	for _, b := range d.DriverAgeBands {
		f, err := parseDec(b.Factor, d.ID, "driver_age_band factor")
		if err != nil {
			return nil, err
		}
		t.DriverAgeBands = append(t.DriverAgeBands, types.AgeBand{MinAge: b.MinAge, MaxAge: b.MaxAge, Factor: f})
	}
	for _, b := range d.ExperienceBands {
		f, err := parseDec(b.Factor, d.ID, "experience_band factor")
		if err != nil {
			return nil, err
		}
		t.ExperienceBands = append(t.ExperienceBands, types.ExperienceBand{MinYears: b.MinYears, MaxYears: b.MaxYears, Factor: f})
	}

	if t.VehicleTypeFactor, err = parseDecMap(d.VehicleTypeFactor, d.ID, "vehicle_type_factor"); err != nil {
		return nil, err
	}
	if t.SafetyCredits, err = parseDecMap(d.SafetyCredits, d.ID, "safety_credits"); err != nil {
		return nil, err
	}
	if t.CreditTierFactor, err = parseDecMap(d.CreditTierFactor, d.ID, "credit_tier_factor"); err != nil {
		return nil, err
	}

	return t, nil
}

func (d *territoryDoc) build() (*types.TerritoryRecord, error) {
	id := d.State + "/" + d.ZIPCode
	base, err := parseDec(d.BaseFactor, id, "base_factor")
	if err != nil {
		return nil, err
	}
	crime, err := parseDec(d.CrimeLoading, id, "crime_loading")
	if err != nil {
		return nil, err
	}
	weather, err := parseDec(d.WeatherLoading, id, "weather_loading")
	if err != nil {
		return nil, err
	}
	traffic, err := parseDec(d.TrafficLoading, id, "traffic_loading")
	if err != nil {
		return nil, err
	}
	cat, err := parseDec(d.CatastropheLoading, id, "catastrophe_loading")
	if err != nil {
		return nil, err
	}

	return &types.TerritoryRecord{
		State:              strings.ToUpper(d.State),
		ZIPCode:            d.ZIPCode,
		Product:            types.ProductType(d.Product),
		BaseFactor:         base,
		CrimeLoading:       crime,
		WeatherLoading:     weather,
		TrafficLoading:     traffic,
		CatastropheLoading: cat,
		EffectiveAt:        d.EffectiveAt,
		ExpiresAt:          d.ExpiresAt,
	}, nil
}

func (d *adjustmentDoc) build() (*types.AdjustmentRule, error) {
	val, err := parseDec(d.Value, d.Code, "value")
	if err != nil {
		return nil, err
	}
	maxCap := decimal.Zero
	if d.MaxCap != "" {
		if maxCap, err = parseDec(d.MaxCap, d.Code, "max_cap"); err != nil {
			return nil, err
		}
	}

	products := make([]types.ProductType, len(d.Products))
	for i, p := range d.Products {
		products[i] = types.ProductType(p)
	}

	return &types.AdjustmentRule{
		Code:        d.Code,
		Description: d.Description,
		Category:    d.Category,
		Products:    products,
		States:      d.States,
		ValueType:   types.ValueType(d.ValueType),
		Value:       val,
		MaxCap:      maxCap,
		Stackable:   d.Stackable,
		Priority:    d.Priority,
		Conditions:  d.Conditions,
		EffectiveAt: d.EffectiveAt,
		ExpiresAt:   d.ExpiresAt,
	}, nil
}

func parseDec(s, id, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.Repository(fmt.Sprintf("%s: %s is empty", id, field), nil)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Repository(fmt.Sprintf("%s: bad %s %q", id, field, s), err)
	}
	return d, nil
}

func parseDecMap(in map[string]string, id, field string) (map[string]decimal.Decimal, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		d, err := parseDec(v, id, field+"."+k)
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

func tableKey(state string, product types.ProductType, coverage types.CoverageType) string {
	return state + "|" + string(product) + "|" + string(coverage)
}

func territoryKey(state, zip string, product types.ProductType) string {
	return state + "|" + zip + "|" + string(product)
}

// HasState reports whether any rate tables exist for a state
func (m *Manual) HasState(ctx context.Context, state string) (bool, error) {
	return m.states[strings.ToUpper(state)], nil
}

// GetRateTables returns all tables for a state/product/coverage combination
func (m *Manual) GetRateTables(ctx context.Context, state string, product types.ProductType, coverage types.CoverageType) ([]*types.RateTable, error) {
	return m.tables[tableKey(strings.ToUpper(state), product, coverage)], nil
}

// ListCoverages returns the coverages with at least one approved table
func (m *Manual) ListCoverages(ctx context.Context, state string, product types.ProductType) ([]types.CoverageType, error) {
	prefix := strings.ToUpper(state) + "|" + string(product) + "|"
	var out []types.CoverageType
	for key, tables := range m.tables {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		for _, t := range tables {
			if t.Status == types.StatusApproved {
				out = append(out, t.Coverage)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// GetTerritoryRecords returns the filed territory data for a ZIP
func (m *Manual) GetTerritoryRecords(ctx context.Context, state, zip string, product types.ProductType) ([]*types.TerritoryRecord, error) {
	return m.territories[territoryKey(strings.ToUpper(state), zip, product)], nil
}

// ListDiscountRules returns the discount rules covering a state/product
func (m *Manual) ListDiscountRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	return filterRules(m.discounts, strings.ToUpper(state), product), nil
}

// ListSurchargeRules returns the surcharge rules covering a state/product
func (m *Manual) ListSurchargeRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	return filterRules(m.surcharges, strings.ToUpper(state), product), nil
}

func filterRules(rules []*types.AdjustmentRule, state string, product types.ProductType) []*types.AdjustmentRule {
	var out []*types.AdjustmentRule
	for _, r := range rules {
		if r.AppliesTo(state, product) {
			out = append(out, r)
		}
	}
	return out
}

// GetStateRules returns the regulatory rule set for a state
func (m *Manual) GetStateRules(ctx context.Context, state string) (*types.StateRuleSet, error) {
	sr, ok := m.stateRules[strings.ToUpper(state)]
	if !ok {
		// A state without filed regulatory rules gets an empty rule set,
		// not a failure: prohibitions are explicit, never inferred.
		return &types.StateRuleSet{State: strings.ToUpper(state)}, nil
	}
	return sr, nil
}

// ContentHash identifies the loaded manual snapshot
func (m *Manual) ContentHash() string {
	return m.hash
}
