// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	RunsStarted        = expvar.NewInt("runs_started")
	RunsAborted        = expvar.NewInt("runs_aborted")
	SymbolsFetched     = expvar.NewInt("symbols_fetched")
	SymbolsFailed      = expvar.NewInt("symbols_failed")
	SymbolsRegistered  = expvar.NewInt("symbols_registered")
	SymbolsSuspended   = expvar.NewInt("symbols_suspended")
	SkippedDelisted    = expvar.NewInt("skipped_delisted")
	SkippedSuspended   = expvar.NewInt("skipped_suspended")
	SkippedFresh       = expvar.NewInt("skipped_fresh")
	SkippedRecent      = expvar.NewInt("skipped_recent_attempt")
	DelistingsRecorded = expvar.NewInt("delistings_recorded")
	AlertsDispatched   = expvar.NewInt("alerts_dispatched")
)
