// Package memory implements an in-memory watermark store, used by tests and
// dry runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kennydoit/fin-trade-extract/internal/store"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*Store)(nil)

// Store is a mutex-guarded in-memory watermark store.
type Store struct {
	mu         sync.Mutex
	watermarks map[string]types.Watermark // key: target + "\x00" + symbol

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		watermarks: make(map[string]types.Watermark),
		Now:        time.Now,
	}
}

func key(target, symbol string) string { return target + "\x00" + symbol }

func (s *Store) Get(_ context.Context, target, symbol string) (*types.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wm, ok := s.watermarks[key(target, symbol)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &wm, nil
}

func (s *Store) ListEligible(_ context.Context, target string, policy types.Policy, opts store.ListOptions) (*types.EligibleSet, error) {
	s.mu.Lock()
	rows := make([]types.Watermark, 0, len(s.watermarks))
	for _, wm := range s.watermarks {
		if wm.Target == target {
			rows = append(rows, wm)
		}
	}
	s.mu.Unlock()

	return store.BuildEligibleSet(rows, policy, opts, s.Now()), nil
}

func (s *Store) RecordSuccess(_ context.Context, target, symbol string, observed types.DateRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	wm := s.getOrInit(target, symbol, now)
	wm.LastSuccessAt = &now
	wm.ConsecutiveFailures = 0
	wm.LastError = ""
	if wm.FirstObservedDate == nil || observed.First.Before(*wm.FirstObservedDate) {
		first := observed.First
		wm.FirstObservedDate = &first
	}
	if wm.LastObservedDate == nil || observed.Last.After(*wm.LastObservedDate) {
		last := observed.Last
		wm.LastObservedDate = &last
	}
	wm.UpdatedAt = now
	s.watermarks[key(target, symbol)] = wm
	return nil
}

func (s *Store) RecordFailure(_ context.Context, target, symbol string, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	wm := s.getOrInit(target, symbol, now)
	wm.ConsecutiveFailures++
	if fetchErr != nil {
		wm.LastError = types.TruncateError(fetchErr.Error())
	}
	wm.UpdatedAt = now
	s.watermarks[key(target, symbol)] = wm
	return nil
}

func (s *Store) RegisterSymbols(_ context.Context, target string, symbols []types.Symbol) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	created := 0
	for _, sym := range symbols {
		k := key(target, sym.Symbol)
		existing, ok := s.watermarks[k]
		if !ok {
			s.watermarks[k] = newWatermark(target, sym, now)
			created++
			continue
		}
		// Refresh lifecycle only; progress fields are never overwritten and
		// DELISTED never downgrades.
		existing.Exchange = sym.Exchange
		existing.AssetType = sym.AssetType
		existing.DelistingDate = sym.DelistingDate
		if existing.Eligibility != types.Delisted && sym.IsDelistedAsOf(now) {
			existing.Eligibility = types.Delisted
		}
		existing.UpdatedAt = now
		s.watermarks[k] = existing
	}
	return created, nil
}

func (s *Store) MarkDelisted(_ context.Context, target, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wm, ok := s.watermarks[key(target, symbol)]
	if !ok {
		return store.ErrNotFound
	}
	wm.Eligibility = types.Delisted
	wm.UpdatedAt = s.Now()
	s.watermarks[key(target, symbol)] = wm
	return nil
}

func (s *Store) ResetFailures(_ context.Context, target, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wm, ok := s.watermarks[key(target, symbol)]
	if !ok {
		return store.ErrNotFound
	}
	wm.ConsecutiveFailures = 0
	wm.LastError = ""
	wm.UpdatedAt = s.Now()
	s.watermarks[key(target, symbol)] = wm
	return nil
}

func (s *Store) Summary(_ context.Context, target string, policy types.Policy) (*types.StoreSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]types.Watermark, 0, len(s.watermarks))
	for _, wm := range s.watermarks {
		if wm.Target == target {
			rows = append(rows, wm)
		}
	}
	return store.Summarize(target, rows, policy), nil
}

func (s *Store) Start(_ context.Context) error { return nil }
func (s *Store) Stop(_ context.Context) error  { return nil }
func (s *Store) Ping(_ context.Context) error  { return nil }

// getOrInit returns the tracked watermark or a fresh row for an unregistered
// pair. Recording against an unregistered pair is allowed: outcomes must
// never be lost even if registration raced the run.
func (s *Store) getOrInit(target, symbol string, now time.Time) types.Watermark {
	if wm, ok := s.watermarks[key(target, symbol)]; ok {
		return wm
	}
	return newWatermark(target, types.Symbol{Symbol: symbol, Status: types.SymbolActive}, now)
}

func newWatermark(target string, sym types.Symbol, now time.Time) types.Watermark {
	elig := types.Eligible
	if sym.IsDelistedAsOf(now) {
		elig = types.Delisted
	}
	return types.Watermark{
		Target:        target,
		Symbol:        sym.Symbol,
		Exchange:      sym.Exchange,
		AssetType:     sym.AssetType,
		Eligibility:   elig,
		DelistingDate: sym.DelistingDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
