// Package coordinator drives extraction runs: it lists eligible pairs from
// the watermark store, fans work out to a bounded worker pool, records every
// outcome back on the watermark, and aborts the run when the error rate trips
// the circuit breaker.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/kennydoit/fin-trade-extract/internal/eligibility"
	"github.com/kennydoit/fin-trade-extract/internal/fetch"
	"github.com/kennydoit/fin-trade-extract/internal/metrics"
	"github.com/kennydoit/fin-trade-extract/internal/store"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Defaults for per-target run tuning.
const (
	DefaultBatchSize          = 50
	DefaultConcurrency        = 4
	DefaultErrorRateThreshold = 0.5
	DefaultMinSamples         = 10
)

// errAborted signals the worker pool to stop scheduling work. The run still
// produces a summary.
var errAborted = errors.New("run aborted")

// RunOptions are per-invocation overrides.
type RunOptions struct {
	// MaxSymbols caps how many eligible pairs this run processes. Zero means
	// no cap.
	MaxSymbols int
}

// Coordinator executes extraction runs against a single store and fetcher.
type Coordinator struct {
	store   store.Store
	fetcher fetch.Fetcher
	alertFn func(types.Alert)
	logger  *slog.Logger

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAlertFunc sets the alert callback invoked on suspensions and aborts.
func WithAlertFunc(fn func(types.Alert)) Option {
	return func(c *Coordinator) { c.alertFn = fn }
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a Coordinator.
func New(s store.Store, f fetch.Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   s,
		fetcher: f,
		logger:  slog.Default(),
		Now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes one extraction run for a target. The returned summary is
// non-nil whenever the run started, including aborted runs; the error reports
// why an aborted run stopped.
func (c *Coordinator) Run(ctx context.Context, target types.TargetConfig, opts RunOptions) (*types.RunSummary, error) {
	runID := ulid.Make().String()
	policy := eligibility.WithDefaults(target.Policy)
	started := c.Now()

	logger := c.logger.With("run_id", runID, "target", target.Name)
	metrics.RunsStarted.Add(1)

	set, err := c.store.ListEligible(ctx, target.Name, policy, store.ListOptions{
		Limit:          opts.MaxSymbols,
		ExchangeFilter: target.ExchangeFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible: %w", err)
	}

	// Delistings discovered during listing become durable before any fetch.
	for _, symbol := range set.NewlyDelisted {
		if err := c.store.MarkDelisted(ctx, target.Name, symbol); err != nil {
			return nil, fmt.Errorf("mark %s delisted: %w", symbol, err)
		}
		metrics.DelistingsRecorded.Add(1)
	}
	recordSkipMetrics(set.Skipped)

	summary := &types.RunSummary{
		RunID:     runID,
		Target:    target.Name,
		Status:    types.RunCompleted,
		Eligible:  len(set.Candidates),
		Skipped:   set.Skipped,
		StartedAt: started,
	}

	logger.Info("run started",
		"eligible", summary.Eligible,
		"skipped_delisted", set.Skipped[types.DecisionSkipDelisted],
		"skipped_suspended", set.Skipped[types.DecisionSkipSuspended],
		"skipped_fresh", set.Skipped[types.DecisionSkipFresh])

	runErr := c.process(ctx, target, policy, set.Candidates, summary, logger)

	c.finish(summary, runErr, logger)
	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

// process works through candidates in batches. Each batch runs on a bounded
// errgroup; the breaker is consulted per symbol so a failing upstream stops
// the run mid-batch instead of burning the whole candidate list.
func (c *Coordinator) process(ctx context.Context, target types.TargetConfig, policy types.Policy, candidates []types.Candidate, summary *types.RunSummary, logger *slog.Logger) error {
	batchSize := target.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrency := target.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	breaker := newRunBreaker(target)

	var mu sync.Mutex
	var abortReason string

	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for _, cand := range batch {
			cand := cand
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return errAborted
				}

				_, err := breaker.Execute(func() (any, error) {
					return c.fetchOne(gctx, target.Name, policy, cand, summary, &mu, logger)
				})
				if isBreakerOpen(err) {
					mu.Lock()
					if abortReason == "" {
						abortReason = fmt.Sprintf("error rate exceeded %.2f", errorRateThreshold(target))
					}
					mu.Unlock()
					return errAborted
				}
				// Store write failures abort: continuing would lose outcomes.
				var se *storeError
				if errors.As(err, &se) {
					mu.Lock()
					if abortReason == "" {
						abortReason = "watermark store unavailable"
					}
					mu.Unlock()
					return se.err
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			mu.Lock()
			if abortReason == "" {
				if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
					abortReason = "canceled"
				} else {
					abortReason = err.Error()
				}
			}
			reason := abortReason
			mu.Unlock()

			summary.AbortReason = reason
			if errors.Is(err, errAborted) {
				return errAborted
			}
			return err
		}

		if err := ctx.Err(); err != nil {
			summary.AbortReason = "canceled"
			return errAborted
		}
	}
	return nil
}

// storeError marks a failure writing an outcome back to the watermark store.
type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// fetchOne runs one pair through the fetcher and records the outcome. The
// returned error feeds the breaker: fetch failures count against the error
// rate, store failures surface as storeError.
func (c *Coordinator) fetchOne(ctx context.Context, targetName string, policy types.Policy, cand types.Candidate, summary *types.RunSummary, mu *sync.Mutex, logger *slog.Logger) (any, error) {
	req := fetch.Request{
		Target: targetName,
		Symbol: cand.Symbol.Symbol,
		Since:  cand.Watermark.LastObservedDate,
	}

	result, fetchErr := c.fetcher.Fetch(ctx, req)
	if fetchErr != nil {
		if err := c.store.RecordFailure(ctx, targetName, req.Symbol, fetchErr); err != nil {
			return nil, &storeError{err: fmt.Errorf("record failure for %s: %w", req.Symbol, err)}
		}
		mu.Lock()
		summary.Failed++
		mu.Unlock()
		metrics.SymbolsFailed.Add(1)

		logger.Warn("fetch failed",
			"symbol", req.Symbol,
			"category", fetch.CategoryOf(fetchErr),
			"error", fetchErr)
		c.checkSuspension(ctx, targetName, req.Symbol, policy)
		return nil, fetchErr
	}

	if err := c.store.RecordSuccess(ctx, targetName, req.Symbol, result.Observed); err != nil {
		return nil, &storeError{err: fmt.Errorf("record success for %s: %w", req.Symbol, err)}
	}
	mu.Lock()
	summary.Succeeded++
	mu.Unlock()
	metrics.SymbolsFetched.Add(1)
	return nil, nil
}

// checkSuspension alerts the moment a pair's failure count reaches the
// suspension threshold. Best effort: a read failure here must not change the
// run outcome.
func (c *Coordinator) checkSuspension(ctx context.Context, targetName, symbol string, policy types.Policy) {
	if c.alertFn == nil {
		return
	}
	wm, err := c.store.Get(ctx, targetName, symbol)
	if err != nil || wm.ConsecutiveFailures != policy.MaxConsecutiveFailures {
		return
	}
	metrics.SymbolsSuspended.Add(1)
	c.alertFn(types.Alert{
		Level:   types.AlertLevelWarning,
		Target:  targetName,
		Symbol:  symbol,
		Message: fmt.Sprintf("symbol suspended after %d consecutive failures", wm.ConsecutiveFailures),
		Details: map[string]interface{}{"lastError": wm.LastError},
	})
}

// finish closes out the summary and emits the terminal log line and alert.
func (c *Coordinator) finish(summary *types.RunSummary, runErr error, logger *slog.Logger) {
	summary.CompletedAt = c.Now()
	summary.Elapsed = summary.CompletedAt.Sub(summary.StartedAt)
	summary.Unprocessed = summary.Eligible - summary.Succeeded - summary.Failed
	if minutes := summary.Elapsed.Minutes(); minutes > 0 {
		summary.SymbolsPerMinute = float64(summary.Succeeded+summary.Failed) / minutes
	}

	if runErr != nil {
		summary.Status = types.RunAborted
		metrics.RunsAborted.Add(1)
		logger.Error("run aborted",
			"reason", summary.AbortReason,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"unprocessed", summary.Unprocessed)
		if c.alertFn != nil {
			c.alertFn(types.Alert{
				Level:   types.AlertLevelError,
				Target:  summary.Target,
				Message: fmt.Sprintf("run %s aborted: %s", summary.RunID, summary.AbortReason),
				Details: map[string]interface{}{
					"succeeded":   summary.Succeeded,
					"failed":      summary.Failed,
					"unprocessed": summary.Unprocessed,
				},
			})
		}
		return
	}

	logger.Info("run completed",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed,
		"symbols_per_minute", fmt.Sprintf("%.1f", summary.SymbolsPerMinute))
}

func errorRateThreshold(target types.TargetConfig) float64 {
	if target.ErrorRateThreshold > 0 {
		return target.ErrorRateThreshold
	}
	return DefaultErrorRateThreshold
}

// newRunBreaker builds the run-level circuit breaker. It trips on the overall
// failure ratio once enough samples accumulate; this is independent of
// per-symbol suspension, which tracks consecutive failures across runs.
func newRunBreaker(target types.TargetConfig) *gobreaker.CircuitBreaker {
	threshold := errorRateThreshold(target)
	minSamples := target.MinSamples
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "run:" + target.Name,
		MaxRequests: 1,
		Interval:    0, // counts accumulate for the whole run
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(minSamples) {
				return false
			}
			rate := float64(counts.TotalFailures) / float64(counts.Requests)
			return rate >= threshold
		},
	})
}

func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func recordSkipMetrics(skipped map[types.Decision]int) {
	metrics.SkippedDelisted.Add(int64(skipped[types.DecisionSkipDelisted]))
	metrics.SkippedSuspended.Add(int64(skipped[types.DecisionSkipSuspended]))
	metrics.SkippedFresh.Add(int64(skipped[types.DecisionSkipFresh]))
	metrics.SkippedRecent.Add(int64(skipped[types.DecisionSkipRecentAttempt]))
}
