// Package eligibility implements the pure per-symbol fetch decision.
//
// The decision rules live in exactly one place. Every caller goes through
// Evaluate, so divergent copies of the staleness logic cannot drift apart.
package eligibility

import (
	"fmt"
	"time"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Default policy values applied when a target omits them.
const (
	DefaultStalenessDays   = 5
	DefaultMaxConsecutive  = 5
	DefaultSkipRecentHours = 0 // disabled unless configured
)

// Result pairs a decision with a human-readable reason.
type Result struct {
	Decision types.Decision
	Reason   string
}

// WithDefaults fills in zero-valued policy fields.
func WithDefaults(p types.Policy) types.Policy {
	if p.StalenessThresholdDays <= 0 {
		p.StalenessThresholdDays = DefaultStalenessDays
	}
	if p.MaxConsecutiveFailures <= 0 {
		p.MaxConsecutiveFailures = DefaultMaxConsecutive
	}
	if p.SkipRecentHours < 0 {
		p.SkipRecentHours = DefaultSkipRecentHours
	}
	return p
}

// Evaluate decides whether a symbol is due for extraction. Rules are checked
// in strict priority order:
//
//  1. delisting date passed            -> SKIP_DELISTED (terminal)
//  2. consecutive failures >= max      -> SKIP_SUSPENDED (manual reset required)
//  3. any attempt within recent window -> SKIP_RECENT_ATTEMPT
//  4. never successfully fetched       -> FETCH
//  5. last success older than staleness threshold -> FETCH
//  6. otherwise                        -> SKIP_FRESH
//
// wm may be nil for a symbol not yet tracked; it evaluates as never-fetched.
func Evaluate(sym types.Symbol, wm *types.Watermark, policy types.Policy, now time.Time) Result {
	policy = WithDefaults(policy)

	if sym.IsDelistedAsOf(now) || (wm != nil && wm.Eligibility == types.Delisted) {
		return Result{
			Decision: types.DecisionSkipDelisted,
			Reason:   delistedReason(sym, wm),
		}
	}

	if wm == nil {
		return Result{Decision: types.DecisionFetch, Reason: "not yet tracked"}
	}

	if wm.ConsecutiveFailures >= policy.MaxConsecutiveFailures {
		return Result{
			Decision: types.DecisionSkipSuspended,
			Reason: fmt.Sprintf("%d consecutive failures (max %d), manual reset required",
				wm.ConsecutiveFailures, policy.MaxConsecutiveFailures),
		}
	}

	if policy.SkipRecentHours > 0 && !wm.UpdatedAt.IsZero() {
		if age := now.Sub(wm.UpdatedAt); age < policy.SkipRecentWindow() {
			return Result{
				Decision: types.DecisionSkipRecentAttempt,
				Reason: fmt.Sprintf("attempted %s ago, within %dh window",
					age.Truncate(time.Minute), policy.SkipRecentHours),
			}
		}
	}

	if wm.LastSuccessAt == nil {
		return Result{Decision: types.DecisionFetch, Reason: "never successfully fetched"}
	}

	age := now.Sub(*wm.LastSuccessAt)
	if age > policy.StalenessThreshold() {
		return Result{
			Decision: types.DecisionFetch,
			Reason: fmt.Sprintf("last success %s ago exceeds %dd threshold",
				age.Truncate(time.Hour), policy.StalenessThresholdDays),
		}
	}

	return Result{
		Decision: types.DecisionSkipFresh,
		Reason: fmt.Sprintf("last success %s ago within %dd threshold",
			age.Truncate(time.Hour), policy.StalenessThresholdDays),
	}
}

func delistedReason(sym types.Symbol, wm *types.Watermark) string {
	if sym.DelistingDate != nil {
		return fmt.Sprintf("delisted %s", sym.DelistingDate.Format(types.DateLayout))
	}
	if wm != nil && wm.DelistingDate != nil {
		return fmt.Sprintf("delisted %s", wm.DelistingDate.Format(types.DateLayout))
	}
	return "delisted"
}
