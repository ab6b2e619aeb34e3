package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func approvedTable() *RateTable {
	return &RateTable{
		ID:          "CA-AUTO-LIAB-2026",
		State:       "CA",
		Product:     ProductAuto,
		Coverage:    CoverageLiability,
		Status:      StatusApproved,
		ApprovalID:  "CDI-2026-0412",
		BaseRate:    dec("850.00"),
		MinPremium:  dec("300.00"),
		MaxPremium:  dec("5000.00"),
		EffectiveAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAgeBandContains(t *testing.T) {
	closed := AgeBand{MinAge: 25, MaxAge: intPtr(39), Factor: dec("1.10")}
	require.True(t, closed.Contains(25))
	require.True(t, closed.Contains(39))
	require.False(t, closed.Contains(40))
	require.False(t, closed.Contains(24))

	open := AgeBand{MinAge: 65, Factor: dec("1.20")}
	require.True(t, open.Contains(65))
	require.True(t, open.Contains(99))
	require.False(t, open.Contains(64))
}

func TestRateTableActiveAt(t *testing.T) {
	table := approvedTable()
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, table.ActiveAt(asOf))
	require.False(t, table.ActiveAt(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))

	expiry := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	table.ExpiresAt = &expiry
	require.False(t, table.ActiveAt(asOf))

	draft := approvedTable()
	draft.Status = StatusDraft
	require.False(t, draft.ActiveAt(asOf), "only approved tables are active")
}

func TestRateTableContentHash(t *testing.T) {
	a := approvedTable()
	b := approvedTable()
	require.Equal(t, a.ContentHash(), b.ContentHash())

	b.BaseRate = dec("900.00")
	require.NotEqual(t, a.ContentHash(), b.ContentHash(), "a rate change is a new pricing identity")
}

func testRequest() *RatingRequest {
	return &RatingRequest{
		State:     "CA",
		ZIPCode:   "90210",
		Product:   ProductAuto,
		Coverages: []CoverageType{CoverageLiability, CoverageCollision},
		Drivers: []Driver{
			{Age: 35, YearsLicensed: 12, CleanRecord: true},
			{Age: 19, YearsLicensed: 1, CleanRecord: true},
		},
		Vehicle:       VehicleInfo{Type: "sedan", ModelYear: 2023, SafetyFeatures: []string{"abs", "airbags"}},
		EffectiveDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRequestValidate(t *testing.T) {
	require.NoError(t, testRequest().Validate())

	missing := testRequest()
	missing.Drivers = nil
	require.Error(t, missing.Validate())

	missing = testRequest()
	missing.EffectiveDate = time.Time{}
	require.Error(t, missing.Validate())
}

func TestFingerprintDeterministic(t *testing.T) {
	require.Equal(t, testRequest().Fingerprint(), testRequest().Fingerprint())

	reordered := testRequest()
	reordered.Coverages = []CoverageType{CoverageCollision, CoverageLiability}
	require.Equal(t, testRequest().Fingerprint(), reordered.Fingerprint(),
		"coverage order does not change identity")

	changed := testRequest()
	changed.Drivers[1].Age = 20
	require.NotEqual(t, testRequest().Fingerprint(), changed.Fingerprint())
}

func TestRequestAttributes(t *testing.T) {
	attrs := testRequest().Attributes()

	require.Equal(t, "2", attrs["driver.count"])
	require.Equal(t, "19", attrs["driver.min_age"])
	require.Equal(t, "35", attrs["driver.max_age"])
	require.Equal(t, "12", attrs["driver.max_experience"])
	require.Equal(t, "true", attrs["driver.all_clean"])
	require.Equal(t, "sedan", attrs["vehicle.type"])
	require.Equal(t, "abs,airbags", attrs["vehicle.safety_features"])
	require.Equal(t, "2", attrs["policy.coverage_count"])
}

func TestAdjustmentRuleAppliesTo(t *testing.T) {
	rule := &AdjustmentRule{
		Products: []ProductType{ProductAuto},
		States:   []string{"CA", "TX"},
	}
	require.True(t, rule.AppliesTo("CA", ProductAuto))
	require.False(t, rule.AppliesTo("NY", ProductAuto))
	require.False(t, rule.AppliesTo("CA", ProductHome))

	everywhere := &AdjustmentRule{Products: []ProductType{ProductAuto}}
	require.True(t, everywhere.AppliesTo("NY", ProductAuto), "no state list means all states")
}

func TestViolationBlocking(t *testing.T) {
	require.True(t, Violation{Severity: SeverityError}.Blocking())
	require.False(t, Violation{Severity: SeverityWarning}.Blocking())
	require.False(t, Violation{Severity: SeverityInfo}.Blocking())
}

func TestFactorSetCombined(t *testing.T) {
	set := &FactorSet{Driver: dec("1.10"), Vehicle: dec("0.97")}
	require.True(t, set.Combined().Equal(dec("1.10").Mul(dec("0.97"))))

	credit := dec("0.85")
	set.Credit = &credit
	require.True(t, set.Combined().Equal(dec("1.10").Mul(dec("0.97")).Mul(dec("0.85"))))
}
