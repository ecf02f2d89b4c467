package store

import (
	"sort"
	"time"

	"github.com/kennydoit/fin-trade-extract/internal/eligibility"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// BuildEligibleSet applies the shared eligibility evaluator to raw watermark
// rows and assembles the listing result. Backends fetch rows however suits
// their storage model and delegate the decision logic here, so every backend
// agrees on what "eligible" means.
func BuildEligibleSet(rows []types.Watermark, policy types.Policy, opts ListOptions, now time.Time) *types.EligibleSet {
	set := &types.EligibleSet{Skipped: make(map[types.Decision]int)}

	for _, wm := range rows {
		if opts.ExchangeFilter != "" && wm.Exchange != opts.ExchangeFilter {
			continue
		}
		wm := wm
		res := eligibility.Evaluate(wm.RegistrySymbol(), &wm, policy, now)
		if res.Decision == types.DecisionSkipDelisted && wm.Eligibility != types.Delisted {
			set.NewlyDelisted = append(set.NewlyDelisted, wm.Symbol)
		}
		if res.Decision != types.DecisionFetch {
			set.Skipped[res.Decision]++
			continue
		}
		set.Candidates = append(set.Candidates, types.Candidate{
			Symbol:    wm.RegistrySymbol(),
			Watermark: wm,
		})
	}

	// Never-fetched first, then stalest, ties broken by symbol for a
	// deterministic batch order.
	sort.Slice(set.Candidates, func(i, j int) bool {
		a, b := set.Candidates[i].Watermark.LastSuccessAt, set.Candidates[j].Watermark.LastSuccessAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return set.Candidates[i].Watermark.Symbol < set.Candidates[j].Watermark.Symbol
	})

	if opts.Limit > 0 && len(set.Candidates) > opts.Limit {
		set.Candidates = set.Candidates[:opts.Limit]
	}
	return set
}

// Summarize aggregates raw watermark rows into a StoreSummary. Shared by
// backends for the same reason as BuildEligibleSet.
func Summarize(target string, rows []types.Watermark, policy types.Policy) *types.StoreSummary {
	policy = eligibility.WithDefaults(policy)
	sum := &types.StoreSummary{
		Target:        target,
		ByEligibility: make(map[types.Eligibility]int),
	}
	for _, wm := range rows {
		sum.Total++
		sum.ByEligibility[wm.Eligibility]++
		if wm.ConsecutiveFailures >= policy.MaxConsecutiveFailures {
			sum.Suspended++
		}
		if wm.LastSuccessAt == nil {
			sum.NeverFetched++
		} else if sum.OldestSuccess == nil || wm.LastSuccessAt.Before(*sum.OldestSuccess) {
			t := *wm.LastSuccessAt
			sum.OldestSuccess = &t
		}
	}
	return sum
}
