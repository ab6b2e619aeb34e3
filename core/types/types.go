// Package types defines the shared value types of the rating core.
// All premium and factor arithmetic uses decimal; reference data is
// read-only snapshots from the caller's perspective.
package types

// ProductType identifies an insurance product line
type ProductType string

const (
	// ProductAuto is personal auto insurance
	ProductAuto ProductType = "auto"

	// ProductHome is homeowners insurance
	ProductHome ProductType = "home"

	// ProductRenters is renters insurance
	ProductRenters ProductType = "renters"
)

// CoverageType identifies a coverage within a product
type CoverageType string

const (
	// CoverageLiability is bodily injury / property damage liability
	CoverageLiability CoverageType = "liability"

	// CoverageCollision is collision coverage
	CoverageCollision CoverageType = "collision"

	// CoverageComprehensive is comprehensive coverage
	CoverageComprehensive CoverageType = "comprehensive"

	// CoverageUninsured is uninsured motorist coverage
	CoverageUninsured CoverageType = "uninsured_motorist"

	// CoverageDwelling is dwelling coverage (home products)
	CoverageDwelling CoverageType = "dwelling"
)

// Severity classifies a business rule violation
type Severity string

const (
	// SeverityError blocks finalization
	SeverityError Severity = "error"

	// SeverityWarning rides along on a successful result
	SeverityWarning Severity = "warning"

	// SeverityInfo is informational only
	SeverityInfo Severity = "info"
)

// TableStatus is the approval state of a rate table
type TableStatus string

const (
	// StatusDraft is an unapproved table, never rateable
	StatusDraft TableStatus = "draft"

	// StatusApproved is the only rateable status
	StatusApproved TableStatus = "approved"

	// StatusRetired is a superseded table
	StatusRetired TableStatus = "retired"
)

// RatingFactor names a factor applied to the base premium
type RatingFactor string

const (
	// FactorTerritory is the composite geographic risk factor
	FactorTerritory RatingFactor = "territory"

	// FactorDriver is the governing driver age/experience factor
	FactorDriver RatingFactor = "driver"

	// FactorVehicle is the vehicle type/safety factor
	FactorVehicle RatingFactor = "vehicle"

	// FactorCredit is the credit tier factor (prohibited in some states)
	FactorCredit RatingFactor = "credit"
)
