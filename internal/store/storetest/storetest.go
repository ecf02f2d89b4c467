// Package storetest provides a shared conformance suite for store.Store
// implementations. Call RunAll from a backend's test to verify the full
// behavioral contract.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-extract/internal/store"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Factory returns a clean store for one subtest.
type Factory func(t *testing.T) store.Store

// RunAll runs the complete store conformance suite as subtests.
func RunAll(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("RegisterThenGet", func(t *testing.T) { testRegisterThenGet(t, newStore(t)) })
	t.Run("RegisterIdempotent", func(t *testing.T) { testRegisterIdempotent(t, newStore(t)) })
	t.Run("RegisterRefreshesLifecycle", func(t *testing.T) { testRegisterRefreshesLifecycle(t, newStore(t)) })
	t.Run("RecordSuccess", func(t *testing.T) { testRecordSuccess(t, newStore(t)) })
	t.Run("ObservedRangeMonotone", func(t *testing.T) { testObservedRangeMonotone(t, newStore(t)) })
	t.Run("RecordFailure", func(t *testing.T) { testRecordFailure(t, newStore(t)) })
	t.Run("ErrorTruncated", func(t *testing.T) { testErrorTruncated(t, newStore(t)) })
	t.Run("ListEligibleOrdering", func(t *testing.T) { testListEligibleOrdering(t, newStore(t)) })
	t.Run("ListEligibleExchangeFilter", func(t *testing.T) { testListEligibleExchangeFilter(t, newStore(t)) })
	t.Run("MarkDelistedMonotone", func(t *testing.T) { testMarkDelistedMonotone(t, newStore(t)) })
	t.Run("ResetFailures", func(t *testing.T) { testResetFailures(t, newStore(t)) })
	t.Run("Summary", func(t *testing.T) { testSummary(t, newStore(t)) })
}

func symbols(names ...string) []types.Symbol {
	out := make([]types.Symbol, 0, len(names))
	for _, n := range names {
		out = append(out, types.Symbol{Symbol: n, Exchange: "NYSE", AssetType: "Stock", Status: types.SymbolActive})
	}
	return out
}

func dateRange(first, last string) types.DateRange {
	f, _ := time.Parse(types.DateLayout, first)
	l, _ := time.Parse(types.DateLayout, last)
	return types.DateRange{First: f, Last: l}
}

func testRegisterThenGet(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "balance_sheet", "IBM")
	require.ErrorIs(t, err, store.ErrNotFound)

	created, err := s.RegisterSymbols(ctx, "balance_sheet", symbols("IBM"))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	wm, err := s.Get(ctx, "balance_sheet", "IBM")
	require.NoError(t, err)
	assert.Equal(t, "balance_sheet", wm.Target)
	assert.Equal(t, "IBM", wm.Symbol)
	assert.Equal(t, "NYSE", wm.Exchange)
	assert.Equal(t, types.Eligible, wm.Eligibility)
	assert.Nil(t, wm.LastSuccessAt)
	assert.Zero(t, wm.ConsecutiveFailures)
	assert.False(t, wm.CreatedAt.IsZero())

	// Registering a delisted symbol computes DELISTED up front.
	past := time.Now().UTC().Add(-48 * time.Hour)
	_, err = s.RegisterSymbols(ctx, "balance_sheet", []types.Symbol{{
		Symbol: "OLD", Exchange: "NYSE", Status: types.SymbolDelisted, DelistingDate: &past,
	}})
	require.NoError(t, err)
	wm, err = s.Get(ctx, "balance_sheet", "OLD")
	require.NoError(t, err)
	assert.Equal(t, types.Delisted, wm.Eligibility)
}

func testRegisterIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.RegisterSymbols(ctx, "income_statement", symbols("AAPL", "MSFT"))
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "income_statement", "AAPL", dateRange("2020-01-01", "2025-03-31")))

	created, err := s.RegisterSymbols(ctx, "income_statement", symbols("AAPL", "MSFT", "GOOG"))
	require.NoError(t, err)
	assert.Equal(t, 1, created, "only GOOG is new")

	// Existing progress survives re-registration.
	wm, err := s.Get(ctx, "income_statement", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, wm.LastSuccessAt)
	require.NotNil(t, wm.FirstObservedDate)
}

func testRegisterRefreshesLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.RegisterSymbols(ctx, "overview", symbols("XYZ"))
	require.NoError(t, err)

	// The registry later reports the symbol as delisted.
	past := time.Now().UTC().Add(-24 * time.Hour)
	_, err = s.RegisterSymbols(ctx, "overview", []types.Symbol{{
		Symbol: "XYZ", Exchange: "NYSE", Status: types.SymbolDelisted, DelistingDate: &past,
	}})
	require.NoError(t, err)

	wm, err := s.Get(ctx, "overview", "XYZ")
	require.NoError(t, err)
	assert.Equal(t, types.Delisted, wm.Eligibility)
	require.NotNil(t, wm.DelistingDate)
}

func testRecordSuccess(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.RegisterSymbols(ctx, "time_series", symbols("TSLA"))
	require.NoError(t, err)
	require.NoError(t, s.RecordFailure(ctx, "time_series", "TSLA", errors.New("rate limited")))
	require.NoError(t, s.RecordFailure(ctx, "time_series", "TSLA", errors.New("rate limited")))

	require.NoError(t, s.RecordSuccess(ctx, "time_series", "TSLA", dateRange("2024-01-02", "2025-06-06")))

	wm, err := s.Get(ctx, "time_series", "TSLA")
	require.NoError(t, err)
	require.NotNil(t, wm.LastSuccessAt)
	assert.WithinDuration(t, time.Now(), *wm.LastSuccessAt, time.Minute)
	assert.Zero(t, wm.ConsecutiveFailures, "success resets the failure counter atomically")
	require.NotNil(t, wm.FirstObservedDate)
	require.NotNil(t, wm.LastObservedDate)
	assert.Equal(t, "2024-01-02", wm.FirstObservedDate.Format(types.DateLayout))
	assert.Equal(t, "2025-06-06", wm.LastObservedDate.Format(types.DateLayout))
}

func testObservedRangeMonotone(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.RegisterSymbols(ctx, "time_series", symbols("NVDA"))
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "time_series", "NVDA", dateRange("2020-01-01", "2025-06-01")))

	// A wholly contained range leaves the bounds unchanged.
	require.NoError(t, s.RecordSuccess(ctx, "time_series", "NVDA", dateRange("2022-05-01", "2023-05-01")))
	wm, err := s.Get(ctx, "time_series", "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", wm.FirstObservedDate.Format(types.DateLayout))
	assert.Equal(t, "2025-06-01", wm.LastObservedDate.Format(types.DateLayout))

	// A wider range extends both bounds.
	require.NoError(t, s.RecordSuccess(ctx, "time_series", "NVDA", dateRange("2019-01-01", "2025-06-08")))
	wm, err = s.Get(ctx, "time_series", "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "2019-01-01", wm.FirstObservedDate.Format(types.DateLayout))
	assert.Equal(t, "2025-06-08", wm.LastObservedDate.Format(types.DateLayout))
}

func testRecordFailure(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.RegisterSymbols(ctx, "cash_flow", symbols("AMD"))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.RecordFailure(ctx, "cash_flow", "AMD", fmt.Errorf("attempt %d: upstream 503", i)))
		wm, err := s.Get(ctx, "cash_flow", "AMD")
		require.NoError(t, err)
		assert.Equal(t, i, wm.ConsecutiveFailures)
		assert.Contains(t, wm.LastError, "upstream 503")
	}
}

func testErrorTruncated(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.RegisterSymbols(ctx, "cash_flow", symbols("INTC"))
	require.NoError(t, err)

	long := strings.Repeat("x", 4*types.MaxErrorLength)
	require.NoError(t, s.RecordFailure(ctx, "cash_flow", "INTC", errors.New(long)))

	wm, err := s.Get(ctx, "cash_flow", "INTC")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(wm.LastError), types.MaxErrorLength)
}

func testListEligibleOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	policy := types.Policy{StalenessThresholdDays: 5, MaxConsecutiveFailures: 5}

	_, err := s.RegisterSymbols(ctx, "earnings", symbols("DONE1", "DONE2", "NEVER1", "NEVER2", "DONE3"))
	require.NoError(t, err)

	require.NoError(t, s.RecordSuccess(ctx, "earnings", "DONE1", dateRange("2024-01-01", "2024-12-31")))
	require.NoError(t, s.RecordSuccess(ctx, "earnings", "DONE2", dateRange("2024-01-01", "2024-12-31")))
	require.NoError(t, s.RecordSuccess(ctx, "earnings", "DONE3", dateRange("2024-01-01", "2024-12-31")))

	set, err := s.ListEligible(ctx, "earnings", policy, store.ListOptions{})
	require.NoError(t, err)

	// With a 5-day threshold and every success just recorded, only the
	// never-fetched pair is eligible: nulls first, then symbol order.
	got := candidateSymbols(set)
	assert.Equal(t, []string{"NEVER1", "NEVER2"}, got)
	assert.Equal(t, 3, set.Skipped[types.DecisionSkipFresh])

	// Limit caps the listing without disturbing order.
	set, err = s.ListEligible(ctx, "earnings", policy, store.ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"NEVER1"}, candidateSymbols(set))
}

func testListEligibleExchangeFilter(t *testing.T, s store.Store) {
	ctx := context.Background()
	policy := types.Policy{StalenessThresholdDays: 5, MaxConsecutiveFailures: 5}

	_, err := s.RegisterSymbols(ctx, "listing", []types.Symbol{
		{Symbol: "NYSE1", Exchange: "NYSE", Status: types.SymbolActive},
		{Symbol: "NAS1", Exchange: "NASDAQ", Status: types.SymbolActive},
	})
	require.NoError(t, err)

	set, err := s.ListEligible(ctx, "listing", policy, store.ListOptions{ExchangeFilter: "NASDAQ"})
	require.NoError(t, err)
	assert.Equal(t, []string{"NAS1"}, candidateSymbols(set))
}

func testMarkDelistedMonotone(t *testing.T, s store.Store) {
	ctx := context.Background()
	policy := types.Policy{StalenessThresholdDays: 5, MaxConsecutiveFailures: 5}

	_, err := s.RegisterSymbols(ctx, "overview", symbols("GONE"))
	require.NoError(t, err)
	require.NoError(t, s.MarkDelisted(ctx, "overview", "GONE"))

	wm, err := s.Get(ctx, "overview", "GONE")
	require.NoError(t, err)
	assert.Equal(t, types.Delisted, wm.Eligibility)

	// Re-registration as active does not resurrect it.
	_, err = s.RegisterSymbols(ctx, "overview", symbols("GONE"))
	require.NoError(t, err)
	wm, err = s.Get(ctx, "overview", "GONE")
	require.NoError(t, err)
	assert.Equal(t, types.Delisted, wm.Eligibility)

	set, err := s.ListEligible(ctx, "overview", policy, store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, candidateSymbols(set))
	assert.Equal(t, 1, set.Skipped[types.DecisionSkipDelisted])
}

func testResetFailures(t *testing.T, s store.Store) {
	ctx := context.Background()
	policy := types.Policy{StalenessThresholdDays: 5, MaxConsecutiveFailures: 3}

	_, err := s.RegisterSymbols(ctx, "time_series", symbols("FLAKY"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordFailure(ctx, "time_series", "FLAKY", errors.New("boom")))
	}

	set, err := s.ListEligible(ctx, "time_series", policy, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Skipped[types.DecisionSkipSuspended])

	require.NoError(t, s.ResetFailures(ctx, "time_series", "FLAKY"))

	set, err = s.ListEligible(ctx, "time_series", policy, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"FLAKY"}, candidateSymbols(set))
}

func testSummary(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.RegisterSymbols(ctx, "dividends", symbols("A", "B", "C"))
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, "dividends", "A", dateRange("2024-01-01", "2025-01-01")))
	require.NoError(t, s.MarkDelisted(ctx, "dividends", "C"))

	sum, err := s.Summary(ctx, "dividends", types.Policy{MaxConsecutiveFailures: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.NeverFetched)
	assert.Equal(t, 1, sum.ByEligibility[types.Delisted])
	require.NotNil(t, sum.OldestSuccess)
}

func candidateSymbols(set *types.EligibleSet) []string {
	var out []string
	for _, c := range set.Candidates {
		out = append(out, c.Watermark.Symbol)
	}
	return out
}
