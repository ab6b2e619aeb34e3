// Package repository provides the reference-data read interface.
// Rate tables, territory records, and rules are authored by an external
// admin process; this core only ever reads time-bounded snapshots.
package repository

import (
	"context"

	"premium-rating/core/types"
)

// Repository is the reference-data read interface the rating core consumes
type Repository interface {
	// HasState reports whether any rate tables exist for a state
	HasState(ctx context.Context, state string) (bool, error)

	// GetRateTables returns all tables for a state/product/coverage
	// combination, regardless of status or effective window. The resolver
	// owns active-record selection and uniqueness.
	GetRateTables(ctx context.Context, state string, product types.ProductType, coverage types.CoverageType) ([]*types.RateTable, error)

	// ListCoverages returns the coverages with at least one approved
	// table for a state/product, for fail-closed error messages.
	ListCoverages(ctx context.Context, state string, product types.ProductType) ([]types.CoverageType, error)

	// GetTerritoryRecords returns the filed territory data for a ZIP
	GetTerritoryRecords(ctx context.Context, state, zip string, product types.ProductType) ([]*types.TerritoryRecord, error)

	// ListDiscountRules returns the discount rules covering a state/product
	ListDiscountRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error)

	// ListSurchargeRules returns the surcharge rules covering a state/product
	ListSurchargeRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error)

	// GetStateRules returns the regulatory rule set for a state
	GetStateRules(ctx context.Context, state string) (*types.StateRuleSet, error)

	// ContentHash identifies the loaded reference-data snapshot
	ContentHash() string
}
