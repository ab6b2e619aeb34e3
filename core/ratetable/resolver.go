// Package ratetable resolves the single approved rate table for a
// state/product/coverage/date. Fail-closed: a data gap is an error,
// never a fallback rate.
package ratetable

import (
	"context"
	"time"

	"premium-rating/core/repository"
	"premium-rating/core/types"
	"premium-rating/internal/config"
	"premium-rating/internal/errors"
)

// Resolver selects active rate tables
type Resolver struct {
	repo repository.Repository
	cfg  *config.Config
}

// NewResolver creates a resolver over a repository
func NewResolver(repo repository.Repository, cfg *config.Config) *Resolver {
	return &Resolver{repo: repo, cfg: cfg}
}

// Resolve returns the one approved, date-effective table for the
// combination. Exactly one must match; two active tables for the same
// date is data corruption and fails the call.
func (r *Resolver) Resolve(ctx context.Context, state string, product types.ProductType, coverage types.CoverageType, asOf time.Time) (*types.RateTable, error) {
	// Supported states are configured, never inferred from loaded data.
	if !r.cfg.StateSupported(state) {
		return nil, errors.StateNotSupported(state, r.cfg.SortedStates())
	}

	hasAny, err := r.repo.HasState(ctx, state)
	if err != nil {
		return nil, errors.Repository("rate table lookup failed", err)
	}
	if !hasAny {
		return nil, errors.StateNotSupported(state, r.cfg.SortedStates())
	}

	tables, err := r.repo.GetRateTables(ctx, state, product, coverage)
	if err != nil {
		return nil, errors.Repository("rate table lookup failed", err)
	}

	var active *types.RateTable
	for _, t := range tables {
		if !t.ActiveAt(asOf) {
			continue
		}
		if active != nil {
			return nil, errors.Repository(
				"multiple active rate tables for "+state+"/"+string(product)+"/"+string(coverage),
				nil).WithContext("table_a", active.ID).WithContext("table_b", t.ID)
		}
		active = t
	}

	if active == nil {
		available, lerr := r.repo.ListCoverages(ctx, state, product)
		if lerr != nil {
			available = nil
		}
		avail := make([]string, len(available))
		for i, c := range available {
			avail[i] = string(c)
		}
		return nil, errors.NoApprovedRate(state, string(product), string(coverage), avail)
	}

	return active, nil
}

// AvailableCoverages enumerates coverages with an approved table,
// for callers and the NoApprovedRate message path.
func (r *Resolver) AvailableCoverages(ctx context.Context, state string, product types.ProductType) ([]types.CoverageType, error) {
	if !r.cfg.StateSupported(state) {
		return nil, errors.StateNotSupported(state, r.cfg.SortedStates())
	}
	return r.repo.ListCoverages(ctx, state, product)
}
