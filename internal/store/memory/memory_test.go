package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-extract/internal/store"
	"github.com/kennydoit/fin-trade-extract/internal/store/storetest"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

func TestConformance(t *testing.T) {
	storetest.RunAll(t, func(t *testing.T) store.Store {
		return New()
	})
}

// Staleness ordering needs a controllable clock, which only the memory store
// exposes, so it lives here rather than in the shared suite.
func TestListEligible_StalestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s.Now = func() time.Time { return clock }

	_, err := s.RegisterSymbols(ctx, "time_series", []types.Symbol{
		{Symbol: "OLD", Exchange: "NYSE", Status: types.SymbolActive},
		{Symbol: "OLDER", Exchange: "NYSE", Status: types.SymbolActive},
		{Symbol: "NEVER", Exchange: "NYSE", Status: types.SymbolActive},
	})
	require.NoError(t, err)

	rng := types.DateRange{First: base.AddDate(-1, 0, 0), Last: base}
	require.NoError(t, s.RecordSuccess(ctx, "time_series", "OLDER", rng))
	clock = base.Add(48 * time.Hour)
	require.NoError(t, s.RecordSuccess(ctx, "time_series", "OLD", rng))

	clock = base.Add(30 * 24 * time.Hour)
	set, err := s.ListEligible(ctx, "time_series", types.Policy{StalenessThresholdDays: 5}, store.ListOptions{})
	require.NoError(t, err)

	var got []string
	for _, c := range set.Candidates {
		got = append(got, c.Watermark.Symbol)
	}
	assert.Equal(t, []string{"NEVER", "OLDER", "OLD"}, got)
}
