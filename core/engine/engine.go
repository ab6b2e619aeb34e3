// Package engine orchestrates one rating calculation.
// Per-call phase machine: Resolving -> Computing -> Validating ->
// Finalized | Rejected. Independent lookups run concurrently; nothing
// mutable is shared across calls except the cache.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"premium-rating/core/cache"
	"premium-rating/core/factors"
	"premium-rating/core/ratetable"
	"premium-rating/core/repository"
	"premium-rating/core/risk"
	"premium-rating/core/rules"
	"premium-rating/core/territory"
	"premium-rating/core/types"
	"premium-rating/core/validate"
	"premium-rating/internal/config"
	"premium-rating/internal/errors"
	"premium-rating/internal/logging"
	"premium-rating/internal/metrics"
)

// Phase is the per-call calculation phase. Never persisted.
type Phase int

const (
	// PhaseResolving runs the rate table and territory lookups
	PhaseResolving Phase = iota

	// PhaseComputing runs factor lookups and rule application
	PhaseComputing

	// PhaseValidating runs the business rule validator
	PhaseValidating

	// PhaseFinalized is the successful terminal phase
	PhaseFinalized

	// PhaseRejected is the blocked terminal phase
	PhaseRejected
)

// String returns the phase name
func (p Phase) String() string {
	names := []string{"resolving", "computing", "validating", "finalized", "rejected"}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// Engine is the rating orchestrator. Safe for concurrent use; every
// call works on its own immutable reference-data snapshot.
type Engine struct {
	resolver   *ratetable.Resolver
	territory  *territory.Manager
	calculator *factors.Calculator
	ruleEngine *rules.Engine
	validator  *validate.Validator
	scorer     *risk.Scorer
	repo       repository.Repository
	quoteCache *cache.Cache
	cfg        *config.Config
}

// New wires an engine from its components
func New(repo repository.Repository, quoteCache *cache.Cache, cfg *config.Config) *Engine {
	return &Engine{
		resolver:   ratetable.NewResolver(repo, cfg),
		territory:  territory.NewManager(repo, &cfg.Territory),
		calculator: factors.NewCalculator(),
		ruleEngine: rules.NewEngine(&cfg.Rules),
		validator:  validate.NewValidator(&cfg.Validation),
		scorer:     risk.NewScorer(quoteCache),
		repo:       repo,
		quoteCache: quoteCache,
		cfg:        cfg,
	}
}

// resolved carries everything the Resolving phase produced
type resolved struct {
	table      *types.RateTable
	territory  *types.TerritoryFactor
	discounts  []*types.AdjustmentRule
	surcharges []*types.AdjustmentRule
	stateRules *types.StateRuleSet
}

// Calculate prices one request. The single entry point of the core.
func (e *Engine) Calculate(ctx context.Context, req *types.RatingRequest) (*types.RatingResult, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(errors.TypeInput, "invalid rating request", err).
			WithRemediation("fix the request fields named in the cause")
	}

	fingerprint := req.Fingerprint()
	if e.cfg.Engine.QuoteCacheEnabled {
		if hit, ok := cache.GetTyped[types.RatingResult](ctx, e.quoteCache, cache.CategoryQuote, quoteKey(fingerprint)); ok {
			out := *hit
			out.FromCache = true
			out.ComputeTimeMs = time.Since(start).Milliseconds()
			metrics.QuotesTotal.WithLabelValues("finalized").Inc()
			return &out, nil
		}
	}

	phase := PhaseResolving
	res, err := e.resolve(ctx, req)
	if err != nil {
		return nil, e.fail(ctx, phase, req, err)
	}

	phase = PhaseComputing
	factorSet, outcome, err := e.compute(ctx, req, res)
	if err != nil {
		return nil, e.fail(ctx, phase, req, err)
	}

	riskScore := e.scorer.Score(ctx, req)

	phase = PhaseValidating
	candidate := &validate.Candidate{
		Request:         req,
		Table:           res.table,
		Territory:       res.territory,
		Factors:         factorSet,
		Premium:         outcome.Premium,
		ClampedToBounds: outcome.ClampedToBounds,
		RiskScore:       riskScore,
	}
	violations := e.validator.Validate(ctx, candidate, res.stateRules)

	var blocking, advisory []types.Violation
	for _, v := range violations {
		if v.Blocking() {
			blocking = append(blocking, v)
		} else {
			advisory = append(advisory, v)
		}
	}

	if len(blocking) > 0 {
		phase = PhaseRejected
		metrics.QuotesTotal.WithLabelValues("rejected").Inc()
		logging.Warn("quote rejected by business rules",
			zap.String("state", req.State),
			zap.String("product", string(req.Product)),
			zap.Int("violations", len(blocking)))
		return nil, RuleViolationError(append(blocking, advisory...))
	}

	phase = PhaseFinalized
	result := e.finalize(req, res, factorSet, outcome, advisory, riskScore, start)

	if e.cfg.Engine.QuoteCacheEnabled {
		cache.PutTyped(ctx, e.quoteCache, cache.CategoryQuote, quoteKey(fingerprint), result)
	}

	elapsed := time.Since(start)
	metrics.QuoteDuration.Observe(elapsed.Seconds())
	metrics.QuotesTotal.WithLabelValues(phase.String()).Inc()

	threshold := time.Duration(e.cfg.Engine.LatencyThresholdMs) * time.Millisecond
	if elapsed > threshold {
		// Performance violation only; the result is still correct.
		metrics.LatencyViolations.Inc()
		logging.Warn("quote exceeded latency threshold",
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold),
			zap.String("state", req.State))
	}

	return result, nil
}

// resolve runs the Resolving phase: rate table, territory, rule sets,
// and state rules fetched concurrently. All must succeed to advance.
func (e *Engine) resolve(ctx context.Context, req *types.RatingRequest) (*resolved, error) {
	// The state gate runs before the fan-out so error identity is
	// deterministic: an unsupported state always reports as such, never
	// as whichever concurrent lookup happened to fail first.
	if !e.cfg.StateSupported(req.State) {
		return nil, errors.StateNotSupported(req.State, e.cfg.SortedStates())
	}
	hasAny, err := e.repo.HasState(ctx, req.State)
	if err != nil {
		return nil, errors.Repository("state lookup failed", err)
	}
	if !hasAny {
		return nil, errors.StateNotSupported(req.State, e.cfg.SortedStates())
	}

	res := &resolved{}
	coverage := primaryCoverage(req)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		table, err := e.resolver.Resolve(gctx, req.State, req.Product, coverage, req.EffectiveDate)
		if err != nil {
			return err
		}
		res.table = table
		return nil
	})

	g.Go(func() error {
		tf, err := e.territory.ResolveTerritory(gctx, req.State, req.ZIPCode, req.Product, req.EffectiveDate)
		if err != nil {
			return err
		}
		res.territory = tf
		return nil
	})

	g.Go(func() error {
		discounts, err := e.repo.ListDiscountRules(gctx, req.State, req.Product)
		if err != nil {
			return errors.Repository("discount rules unavailable", err)
		}
		res.discounts = discounts
		return nil
	})

	g.Go(func() error {
		surcharges, err := e.repo.ListSurchargeRules(gctx, req.State, req.Product)
		if err != nil {
			return errors.Repository("surcharge rules unavailable", err)
		}
		res.surcharges = surcharges
		return nil
	})

	g.Go(func() error {
		stateRules, err := e.repo.GetStateRules(gctx, req.State)
		if err != nil {
			return errors.Repository("state rules unavailable", err)
		}
		res.stateRules = stateRules
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// compute runs the Computing phase: factor lookups then rule application
func (e *Engine) compute(ctx context.Context, req *types.RatingRequest, res *resolved) (*types.FactorSet, *rules.Outcome, error) {
	factorSet, err := e.calculator.Calculate(ctx, res.table, req, res.stateRules)
	if err != nil {
		return nil, nil, err
	}

	candidate := res.table.BaseRate.
		Mul(res.territory.Composite).
		Mul(factorSet.Combined())

	outcome, err := e.ruleEngine.Apply(ctx, res.table, candidate, req, res.discounts, res.surcharges)
	if err != nil {
		return nil, nil, err
	}
	return factorSet, outcome, nil
}

// finalize assembles the immutable result
func (e *Engine) finalize(req *types.RatingRequest, res *resolved, factorSet *types.FactorSet, outcome *rules.Outcome, advisory []types.Violation, riskScore int, start time.Time) *types.RatingResult {
	applied := map[string]decimal.Decimal{
		string(types.FactorTerritory): res.territory.Composite,
		string(types.FactorDriver):    factorSet.Driver,
		string(types.FactorVehicle):   factorSet.Vehicle,
	}
	if factorSet.Credit != nil {
		applied[string(types.FactorCredit)] = *factorSet.Credit
	}

	return &types.RatingResult{
		QuoteID:         uuid.NewString(),
		RateTableID:     res.table.ID,
		RateTableHash:   res.table.ContentHash(),
		BasePremium:     res.table.BaseRate,
		TerritoryFactor: res.territory.Composite,
		AppliedFactors:  applied,
		Discounts:       outcome.Discounts,
		Surcharges:      outcome.Surcharges,
		TotalPremium:    outcome.Premium.Round(2),
		ClampedToBounds: outcome.ClampedToBounds,
		RiskScore:       riskScore,
		Violations:      advisory,
		ComputeTimeMs:   time.Since(start).Milliseconds(),
	}
}

// fail classifies a phase failure, mapping caller cancellation to the
// timeout kind. Sub-lookups are pure reads, so abandonment is safe.
func (e *Engine) fail(ctx context.Context, phase Phase, req *types.RatingRequest, err error) error {
	metrics.QuotesTotal.WithLabelValues("error").Inc()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(errors.TypeCalculationTimeout, "calculation cancelled in phase "+phase.String(), ctxErr).
			WithRemediation("raise the caller's deadline or reduce concurrent load")
	}

	logging.Debug("quote failed",
		zap.String("phase", phase.String()),
		zap.String("state", req.State),
		zap.Error(err))
	return err
}

// primaryCoverage returns the coverage the rate table is resolved for.
// The first selection is primary; the full list still drives the
// required-coverage check and rule eligibility.
func primaryCoverage(req *types.RatingRequest) types.CoverageType {
	return req.Coverages[0]
}

func quoteKey(fingerprint string) string {
	return cache.Key(cache.CategoryQuote, cache.DateBucket(time.Now()), fingerprint)
}

// RuleViolationError builds the typed rejection error carrying the
// full violation list.
func RuleViolationError(violations []types.Violation) *errors.Error {
	err := errors.New(errors.TypeRuleViolation, "quote blocked by business rule violations").
		WithRemediation("resolve the error-severity violations and requote")
	err.WithContext("violations", violations)
	return err
}

// ViolationsFromError extracts the violation list from a rejection error
func ViolationsFromError(err error) []types.Violation {
	e, ok := err.(*errors.Error)
	if !ok || e.Type != errors.TypeRuleViolation {
		return nil
	}
	v, _ := e.Context["violations"].([]types.Violation)
	return v
}
