// Package store defines the watermark persistence contract.
package store

import (
	"context"
	"errors"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// ErrNotFound is returned by Get for an untracked (target, symbol) pair.
var ErrNotFound = errors.New("watermark not found")

// ListOptions narrows an eligibility listing.
type ListOptions struct {
	// Limit caps the number of returned candidates; <= 0 means no cap.
	Limit int
	// ExchangeFilter restricts candidates to one exchange when non-empty.
	ExchangeFilter string
}

// Store is the watermark persistence interface. Every write is an atomic
// per-(target, symbol) upsert; implementations never require transactions
// spanning multiple symbols.
type Store interface {
	// Get returns the watermark for a tracked pair, or ErrNotFound.
	Get(ctx context.Context, target, symbol string) (*types.Watermark, error)

	// ListEligible evaluates every tracked symbol for a target against the
	// policy and returns the FETCH candidates ordered by ascending
	// last_success_at (nulls first) then symbol, plus skip counts per
	// decision and the symbols newly observed as delisted.
	ListEligible(ctx context.Context, target string, policy types.Policy, opts ListOptions) (*types.EligibleSet, error)

	// RecordSuccess marks a successful extraction: last_success_at = now,
	// consecutive_failures = 0, observed range widened monotonically.
	RecordSuccess(ctx context.Context, target, symbol string, observed types.DateRange) error

	// RecordFailure increments consecutive_failures atomically and stores
	// the truncated error text.
	RecordFailure(ctx context.Context, target, symbol string, fetchErr error) error

	// RegisterSymbols inserts watermarks for newly discovered symbols and
	// refreshes denormalized symbol lifecycle on existing rows without
	// touching extraction progress. Returns the number of new rows.
	RegisterSymbols(ctx context.Context, target string, symbols []types.Symbol) (int, error)

	// MarkDelisted sets the terminal DELISTED eligibility on a row.
	MarkDelisted(ctx context.Context, target, symbol string) error

	// ResetFailures clears a per-symbol suspension (manual operator action).
	ResetFailures(ctx context.Context, target, symbol string) error

	// Summary aggregates watermark state for one target; the policy supplies
	// the suspension threshold.
	Summary(ctx context.Context, target string, policy types.Policy) (*types.StoreSummary, error)

	// Lifecycle.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
