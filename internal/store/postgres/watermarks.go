package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kennydoit/fin-trade-extract/internal/store"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

const watermarkColumns = `target_name, symbol, exchange, asset_type, eligibility,
	delisting_date, first_observed_date, last_observed_date, last_success_at,
	consecutive_failures, last_error, created_at, updated_at`

func scanWatermark(row pgx.Row) (types.Watermark, error) {
	var wm types.Watermark
	var eligibility string
	err := row.Scan(&wm.Target, &wm.Symbol, &wm.Exchange, &wm.AssetType, &eligibility,
		&wm.DelistingDate, &wm.FirstObservedDate, &wm.LastObservedDate, &wm.LastSuccessAt,
		&wm.ConsecutiveFailures, &wm.LastError, &wm.CreatedAt, &wm.UpdatedAt)
	if err != nil {
		return wm, err
	}
	wm.Eligibility = types.Eligibility(eligibility)
	return wm, nil
}

// Get returns the watermark for a (target, symbol) pair.
func (s *Store) Get(ctx context.Context, target, symbol string) (*types.Watermark, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+watermarkColumns+`
		FROM etl_watermarks
		WHERE target_name = $1 AND symbol = $2
	`, target, symbol)

	wm, err := scanWatermark(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	return &wm, nil
}

// ListEligible loads all watermark rows for a target and applies the shared
// eligibility evaluator. Decision logic stays in Go so every backend agrees.
func (s *Store) ListEligible(ctx context.Context, target string, policy types.Policy, opts store.ListOptions) (*types.EligibleSet, error) {
	rows, err := s.queryTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	return store.BuildEligibleSet(rows, policy, opts, s.Now()), nil
}

// RecordSuccess upserts a successful fetch outcome. The observed range only
// ever widens, and the failure counter resets in the same statement.
func (s *Store) RecordSuccess(ctx context.Context, target, symbol string, observed types.DateRange) error {
	now := s.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO etl_watermarks (target_name, symbol, eligibility,
			first_observed_date, last_observed_date, last_success_at,
			consecutive_failures, last_error, created_at, updated_at)
		VALUES ($1, $2, 'ELIGIBLE', $3, $4, $5, 0, '', $5, $5)
		ON CONFLICT (target_name, symbol) DO UPDATE SET
			first_observed_date  = LEAST(COALESCE(etl_watermarks.first_observed_date, EXCLUDED.first_observed_date), EXCLUDED.first_observed_date),
			last_observed_date   = GREATEST(COALESCE(etl_watermarks.last_observed_date, EXCLUDED.last_observed_date), EXCLUDED.last_observed_date),
			last_success_at      = EXCLUDED.last_success_at,
			consecutive_failures = 0,
			last_error           = '',
			updated_at           = EXCLUDED.updated_at
	`, target, symbol, observed.First, observed.Last, now)
	if err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// RecordFailure upserts a failed fetch outcome, incrementing the consecutive
// failure counter atomically.
func (s *Store) RecordFailure(ctx context.Context, target, symbol string, fetchErr error) error {
	msg := ""
	if fetchErr != nil {
		msg = types.TruncateError(fetchErr.Error())
	}
	now := s.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO etl_watermarks (target_name, symbol, eligibility,
			consecutive_failures, last_error, created_at, updated_at)
		VALUES ($1, $2, 'ELIGIBLE', 1, $3, $4, $4)
		ON CONFLICT (target_name, symbol) DO UPDATE SET
			consecutive_failures = etl_watermarks.consecutive_failures + 1,
			last_error           = EXCLUDED.last_error,
			updated_at           = EXCLUDED.updated_at
	`, target, symbol, msg, now)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// RegisterSymbols inserts missing watermark rows and refreshes lifecycle
// fields on existing ones. Progress fields are never touched and DELISTED
// never downgrades.
func (s *Store) RegisterSymbols(ctx context.Context, target string, symbols []types.Symbol) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.Now()
	created := 0
	for _, sym := range symbols {
		eligibility := string(types.Eligible)
		if sym.IsDelistedAsOf(now) {
			eligibility = string(types.Delisted)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO etl_watermarks (target_name, symbol, exchange, asset_type,
				eligibility, delisting_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (target_name, symbol) DO NOTHING
		`, target, sym.Symbol, sym.Exchange, sym.AssetType, eligibility, sym.DelistingDate, now)
		if err != nil {
			return 0, fmt.Errorf("register %s: %w", sym.Symbol, err)
		}
		if tag.RowsAffected() == 1 {
			created++
			continue
		}

		_, err = tx.Exec(ctx, `
			UPDATE etl_watermarks SET
				exchange       = $3,
				asset_type     = $4,
				delisting_date = $5,
				eligibility    = CASE WHEN $6::boolean THEN 'DELISTED' ELSE eligibility END,
				updated_at     = $7
			WHERE target_name = $1 AND symbol = $2
		`, target, sym.Symbol, sym.Exchange, sym.AssetType, sym.DelistingDate,
			sym.IsDelistedAsOf(now), now)
		if err != nil {
			return 0, fmt.Errorf("refresh %s: %w", sym.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// MarkDelisted permanently marks a pair as delisted.
func (s *Store) MarkDelisted(ctx context.Context, target, symbol string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE etl_watermarks SET eligibility = 'DELISTED', updated_at = $3
		WHERE target_name = $1 AND symbol = $2
	`, target, symbol, s.Now())
	if err != nil {
		return fmt.Errorf("mark delisted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ResetFailures clears the failure counter and last error, lifting a
// suspension.
func (s *Store) ResetFailures(ctx context.Context, target, symbol string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE etl_watermarks SET consecutive_failures = 0, last_error = '', updated_at = $3
		WHERE target_name = $1 AND symbol = $2
	`, target, symbol, s.Now())
	if err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Summary aggregates all watermark rows for a target.
func (s *Store) Summary(ctx context.Context, target string, policy types.Policy) (*types.StoreSummary, error) {
	rows, err := s.queryTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	return store.Summarize(target, rows, policy), nil
}

func (s *Store) queryTarget(ctx context.Context, target string) ([]types.Watermark, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+watermarkColumns+`
		FROM etl_watermarks
		WHERE target_name = $1
	`, target)
	if err != nil {
		return nil, fmt.Errorf("query target %s: %w", target, err)
	}
	defer rows.Close()

	var out []types.Watermark
	for rows.Next() {
		wm, err := scanWatermark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		out = append(out, wm)
	}
	return out, rows.Err()
}
