package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Driver describes one driver on the requested policy
type Driver struct {
	Age            int  `yaml:"age" json:"age"`
	YearsLicensed  int  `yaml:"years_licensed" json:"years_licensed"`
	CleanRecord    bool `yaml:"clean_record" json:"clean_record"`
	Violations     int  `yaml:"violations" json:"violations"`
	AtFaultClaims  int  `yaml:"at_fault_claims" json:"at_fault_claims"`
	DefensiveCert  bool `yaml:"defensive_cert" json:"defensive_cert"`
	GoodStudent    bool `yaml:"good_student" json:"good_student"`
}

// VehicleInfo describes the vehicle being rated
type VehicleInfo struct {
	Type           string   `yaml:"type" json:"type"` // sedan, suv, truck, sports, motorcycle
	ModelYear      int      `yaml:"model_year" json:"model_year"`
	SafetyFeatures []string `yaml:"safety_features" json:"safety_features"`
	AntiTheft      bool     `yaml:"anti_theft" json:"anti_theft"`
	AnnualMileage  int      `yaml:"annual_mileage" json:"annual_mileage"`
}

// CreditInfo carries the credit tier where state law permits its use
type CreditInfo struct {
	Tier string `yaml:"tier" json:"tier"` // excellent, good, fair, poor
}

// RatingRequest is the caller-owned input to one calculation.
// Read-only to the rating core.
type RatingRequest struct {
	State         string         `yaml:"state" json:"state"`
	ZIPCode       string         `yaml:"zip_code" json:"zip_code"`
	Product       ProductType    `yaml:"product" json:"product"`
	Coverages     []CoverageType `yaml:"coverages" json:"coverages"`
	Drivers       []Driver       `yaml:"drivers" json:"drivers"`
	Vehicle       VehicleInfo    `yaml:"vehicle" json:"vehicle"`
	Credit        *CreditInfo    `yaml:"credit,omitempty" json:"credit,omitempty"`
	MultiPolicy   bool           `yaml:"multi_policy" json:"multi_policy"`
	PaidInFull    bool           `yaml:"paid_in_full" json:"paid_in_full"`
	EffectiveDate time.Time      `yaml:"effective_date" json:"effective_date"`
}

// Validate checks structural completeness before rating starts
func (r *RatingRequest) Validate() error {
	if r.State == "" {
		return fmt.Errorf("state is required")
	}
	if r.ZIPCode == "" {
		return fmt.Errorf("zip_code is required")
	}
	if r.Product == "" {
		return fmt.Errorf("product is required")
	}
	if len(r.Coverages) == 0 {
		return fmt.Errorf("at least one coverage is required")
	}
	if len(r.Drivers) == 0 {
		return fmt.Errorf("at least one driver is required")
	}
	if r.EffectiveDate.IsZero() {
		return fmt.Errorf("effective_date is required")
	}
	return nil
}

// Fingerprint returns a deterministic hash of the request identity.
// Same request + same date bucket = same fingerprint, which keys the
// whole-quote cache and backs the determinism guarantee.
func (r *RatingRequest) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(r.State))
	h.Write([]byte(r.ZIPCode))
	h.Write([]byte(r.Product))

	covs := make([]string, len(r.Coverages))
	for i, c := range r.Coverages {
		covs[i] = string(c)
	}
	sort.Strings(covs)
	h.Write([]byte(strings.Join(covs, ",")))

	for _, d := range r.Drivers {
		fmt.Fprintf(h, "d:%d:%d:%t:%d:%d:%t:%t;", d.Age, d.YearsLicensed, d.CleanRecord, d.Violations, d.AtFaultClaims, d.DefensiveCert, d.GoodStudent)
	}

	feats := make([]string, len(r.Vehicle.SafetyFeatures))
	copy(feats, r.Vehicle.SafetyFeatures)
	sort.Strings(feats)
	fmt.Fprintf(h, "v:%s:%d:%s:%t:%d;", r.Vehicle.Type, r.Vehicle.ModelYear, strings.Join(feats, "+"), r.Vehicle.AntiTheft, r.Vehicle.AnnualMileage)

	if r.Credit != nil {
		h.Write([]byte("c:" + r.Credit.Tier))
	}
	fmt.Fprintf(h, "p:%t:%t;", r.MultiPolicy, r.PaidInFull)
	h.Write([]byte(r.EffectiveDate.UTC().Format("2006-01-02")))

	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Attributes flattens the request into the attribute map that rule
// eligibility conditions evaluate against
func (r *RatingRequest) Attributes() map[string]string {
	minAge, maxAge := 0, 0
	maxExp := 0
	allClean := true
	allDefensive := true
	anyGoodStudent := false
	for i, d := range r.Drivers {
		if i == 0 || d.Age < minAge {
			minAge = d.Age
		}
		if d.Age > maxAge {
			maxAge = d.Age
		}
		if d.YearsLicensed > maxExp {
			maxExp = d.YearsLicensed
		}
		if !d.CleanRecord {
			allClean = false
		}
		if !d.DefensiveCert {
			allDefensive = false
		}
		if d.GoodStudent {
			anyGoodStudent = true
		}
	}

	return map[string]string{
		"driver.count":         strconv.Itoa(len(r.Drivers)),
		"driver.min_age":       strconv.Itoa(minAge),
		"driver.max_age":       strconv.Itoa(maxAge),
		"driver.max_experience": strconv.Itoa(maxExp),
		"driver.all_clean":     strconv.FormatBool(allClean),
		"driver.all_defensive": strconv.FormatBool(allDefensive),
		"driver.good_student":  strconv.FormatBool(anyGoodStudent),
		"vehicle.type":         r.Vehicle.Type,
		"vehicle.model_year":   strconv.Itoa(r.Vehicle.ModelYear),
		"vehicle.anti_theft":   strconv.FormatBool(r.Vehicle.AntiTheft),
		"vehicle.safety_features": strings.Join(r.Vehicle.SafetyFeatures, ","),
		"vehicle.annual_mileage":  strconv.Itoa(r.Vehicle.AnnualMileage),
		"policy.multi_policy":  strconv.FormatBool(r.MultiPolicy),
		"policy.paid_in_full":  strconv.FormatBool(r.PaidInFull),
		"policy.coverage_count": strconv.Itoa(len(r.Coverages)),
	}
}

// HasCoverage reports whether a coverage was selected
func (r *RatingRequest) HasCoverage(c CoverageType) bool {
	for _, sel := range r.Coverages {
		if sel == c {
			return true
		}
	}
	return false
}
