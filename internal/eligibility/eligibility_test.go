package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

var now = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func activeSymbol() types.Symbol {
	return types.Symbol{Symbol: "AAPL", Exchange: "NASDAQ", Status: types.SymbolActive}
}

func trackedWatermark(mut func(*types.Watermark)) *types.Watermark {
	wm := &types.Watermark{
		Target:      "income_statement",
		Symbol:      "AAPL",
		Eligibility: types.Eligible,
		CreatedAt:   now.Add(-90 * 24 * time.Hour),
		UpdatedAt:   now.Add(-48 * time.Hour),
	}
	if mut != nil {
		mut(wm)
	}
	return wm
}

func TestEvaluate_DelistedDominatesEverything(t *testing.T) {
	sym := activeSymbol()
	sym.Status = types.SymbolDelisted
	sym.DelistingDate = timePtr(now.Add(-24 * time.Hour))

	// Even a never-fetched, otherwise perfectly eligible symbol is skipped.
	for _, wm := range []*types.Watermark{
		nil,
		trackedWatermark(nil),
		trackedWatermark(func(w *types.Watermark) { w.LastSuccessAt = timePtr(now.Add(-400 * 24 * time.Hour)) }),
		trackedWatermark(func(w *types.Watermark) { w.ConsecutiveFailures = 99 }),
	} {
		res := Evaluate(sym, wm, types.Policy{}, now)
		assert.Equal(t, types.DecisionSkipDelisted, res.Decision)
	}
}

func TestEvaluate_DelistedIsMonotone(t *testing.T) {
	// Registry flips back to active, but the watermark already reached
	// DELISTED: the decision never reverts.
	wm := trackedWatermark(func(w *types.Watermark) { w.Eligibility = types.Delisted })
	res := Evaluate(activeSymbol(), wm, types.Policy{}, now)
	assert.Equal(t, types.DecisionSkipDelisted, res.Decision)

	// Repeated calls agree.
	res2 := Evaluate(activeSymbol(), wm, types.Policy{}, now.Add(time.Hour))
	assert.Equal(t, types.DecisionSkipDelisted, res2.Decision)
}

func TestEvaluate_FutureDelistingDateStillFetches(t *testing.T) {
	sym := activeSymbol()
	sym.DelistingDate = timePtr(now.Add(30 * 24 * time.Hour))
	res := Evaluate(sym, trackedWatermark(nil), types.Policy{}, now)
	assert.Equal(t, types.DecisionFetch, res.Decision)
}

func TestEvaluate_SuspendedEvenWhenNeverFetched(t *testing.T) {
	wm := trackedWatermark(func(w *types.Watermark) {
		w.ConsecutiveFailures = 5
		w.LastSuccessAt = nil
	})
	res := Evaluate(activeSymbol(), wm, types.Policy{MaxConsecutiveFailures: 5}, now)
	assert.Equal(t, types.DecisionSkipSuspended, res.Decision)
	assert.Contains(t, res.Reason, "manual reset")
}

func TestEvaluate_SuspendedEvenWhenStale(t *testing.T) {
	wm := trackedWatermark(func(w *types.Watermark) {
		w.ConsecutiveFailures = 7
		w.LastSuccessAt = timePtr(now.Add(-200 * 24 * time.Hour))
	})
	res := Evaluate(activeSymbol(), wm, types.Policy{MaxConsecutiveFailures: 5}, now)
	assert.Equal(t, types.DecisionSkipSuspended, res.Decision)
}

func TestEvaluate_NeverFetchedAlwaysFetches(t *testing.T) {
	res := Evaluate(activeSymbol(), trackedWatermark(nil), types.Policy{}, now)
	assert.Equal(t, types.DecisionFetch, res.Decision)

	// An untracked symbol behaves the same.
	res = Evaluate(activeSymbol(), nil, types.Policy{}, now)
	assert.Equal(t, types.DecisionFetch, res.Decision)
}

func TestEvaluate_StaleTriggersFetch(t *testing.T) {
	wm := trackedWatermark(func(w *types.Watermark) {
		w.LastSuccessAt = timePtr(now.Add(-6 * 24 * time.Hour))
	})
	res := Evaluate(activeSymbol(), wm, types.Policy{StalenessThresholdDays: 5}, now)
	assert.Equal(t, types.DecisionFetch, res.Decision)
}

func TestEvaluate_FreshSkips(t *testing.T) {
	wm := trackedWatermark(func(w *types.Watermark) {
		w.LastSuccessAt = timePtr(now.Add(-3 * 24 * time.Hour))
	})
	res := Evaluate(activeSymbol(), wm, types.Policy{StalenessThresholdDays: 5}, now)
	assert.Equal(t, types.DecisionSkipFresh, res.Decision)
}

func TestEvaluate_RecentAttemptSuppressed(t *testing.T) {
	// Failed two hours ago; within the 18h window the symbol is not retried,
	// regardless of staleness.
	wm := trackedWatermark(func(w *types.Watermark) {
		w.UpdatedAt = now.Add(-2 * time.Hour)
		w.ConsecutiveFailures = 1
	})
	policy := types.Policy{StalenessThresholdDays: 5, SkipRecentHours: 18}
	res := Evaluate(activeSymbol(), wm, policy, now)
	assert.Equal(t, types.DecisionSkipRecentAttempt, res.Decision)

	// Outside the window the normal rules apply again.
	wm.UpdatedAt = now.Add(-20 * time.Hour)
	res = Evaluate(activeSymbol(), wm, policy, now)
	assert.Equal(t, types.DecisionFetch, res.Decision)
}

func TestEvaluate_RecentAttemptDisabledByDefault(t *testing.T) {
	wm := trackedWatermark(func(w *types.Watermark) { w.UpdatedAt = now.Add(-time.Minute) })
	res := Evaluate(activeSymbol(), wm, types.Policy{}, now)
	assert.Equal(t, types.DecisionFetch, res.Decision)
}

func TestEvaluate_SuspensionBeatsRecentAttempt(t *testing.T) {
	wm := trackedWatermark(func(w *types.Watermark) {
		w.UpdatedAt = now.Add(-time.Hour)
		w.ConsecutiveFailures = 5
	})
	policy := types.Policy{MaxConsecutiveFailures: 5, SkipRecentHours: 18}
	res := Evaluate(activeSymbol(), wm, policy, now)
	assert.Equal(t, types.DecisionSkipSuspended, res.Decision)
}

func TestWithDefaults(t *testing.T) {
	p := WithDefaults(types.Policy{})
	assert.Equal(t, DefaultStalenessDays, p.StalenessThresholdDays)
	assert.Equal(t, DefaultMaxConsecutive, p.MaxConsecutiveFailures)

	p = WithDefaults(types.Policy{StalenessThresholdDays: 135, MaxConsecutiveFailures: 3, SkipRecentHours: 6})
	assert.Equal(t, 135, p.StalenessThresholdDays)
	assert.Equal(t, 3, p.MaxConsecutiveFailures)
	assert.Equal(t, 6, p.SkipRecentHours)
}
