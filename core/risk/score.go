// Package risk derives a bounded driver risk score from the request's
// driving records. The score is advisory input to validation; it is
// cached briefly because record data refreshes often.
package risk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"premium-rating/core/cache"
	"premium-rating/core/types"
)

// Score weights per record item
const (
	violationPoints  = 12
	atFaultPoints    = 18
	youthPoints      = 15
	noviceLicensePts = 10
	defensiveCredit  = 10
	maxScore         = 100
)

// Scorer computes driver risk scores on a 0-100 scale
type Scorer struct {
	cache *cache.Cache
}

// NewScorer creates a scorer over a cache tier
func NewScorer(c *cache.Cache) *Scorer {
	return &Scorer{cache: c}
}

// Score rates the request's drivers. The governing (highest) driver
// scores the policy, matching how factor lookups rate the worst driver.
func (s *Scorer) Score(ctx context.Context, req *types.RatingRequest) int {
	key := scoreKey(req)
	if hit, ok := cache.GetTyped[int](ctx, s.cache, cache.CategoryRiskScore, key); ok {
		return *hit
	}

	score := Compute(req.Drivers)
	cache.PutTyped(ctx, s.cache, cache.CategoryRiskScore, key, &score)
	return score
}

// Compute scores a driver set without touching the cache
func Compute(drivers []types.Driver) int {
	governing := 0
	for _, d := range drivers {
		v := d.Violations*violationPoints + d.AtFaultClaims*atFaultPoints
		if d.Age < 25 {
			v += youthPoints
		}
		if d.YearsLicensed < 3 {
			v += noviceLicensePts
		}
		if d.DefensiveCert {
			v -= defensiveCredit
		}
		if v < 0 {
			v = 0
		}
		if v > maxScore {
			v = maxScore
		}
		if v > governing {
			governing = v
		}
	}
	return governing
}

// scoreKey hashes the record inputs the score depends on
func scoreKey(req *types.RatingRequest) string {
	h := sha256.New()
	for _, d := range req.Drivers {
		fmt.Fprintf(h, "%d:%d:%d:%d:%t;", d.Age, d.YearsLicensed, d.Violations, d.AtFaultClaims, d.DefensiveCert)
	}
	sum := hex.EncodeToString(h.Sum(nil)[:16])
	return cache.Key(cache.CategoryRiskScore, cache.DateBucket(time.Now()), sum)
}
