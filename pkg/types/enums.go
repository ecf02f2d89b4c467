// Package types defines the public domain types for the fin-trade-extract
// watermark manager.
package types

// Eligibility is the persisted lifecycle flag on a watermark row.
type Eligibility string

// Eligibility values. Delisted is terminal: once a watermark reaches it, no
// operation downgrades it back to Eligible.
const (
	Eligible   Eligibility = "ELIGIBLE"
	Ineligible Eligibility = "INELIGIBLE"
	Delisted   Eligibility = "DELISTED"
)

// SymbolStatus is the lifecycle status of a symbol in the external registry.
type SymbolStatus string

// SymbolStatus values as reported by the listing registry.
const (
	SymbolActive   SymbolStatus = "active"
	SymbolDelisted SymbolStatus = "delisted"
)

// Decision is the outcome of evaluating a watermark against policy.
type Decision string

// Decision values, in the order the evaluator checks them.
const (
	DecisionSkipDelisted      Decision = "SKIP_DELISTED"
	DecisionSkipSuspended     Decision = "SKIP_SUSPENDED"
	DecisionSkipRecentAttempt Decision = "SKIP_RECENT_ATTEMPT"
	DecisionFetch             Decision = "FETCH"
	DecisionSkipFresh         Decision = "SKIP_FRESH"
)

// FailureCategory classifies why a fetch-and-load attempt failed.
type FailureCategory string

const (
	FailureTransient FailureCategory = "TRANSIENT"
	FailurePermanent FailureCategory = "PERMANENT"
	FailureTimeout   FailureCategory = "TIMEOUT"
)

// RunStatus is the terminal status of a batch run.
type RunStatus string

// RunStatus values for a completed batch run.
const (
	RunCompleted RunStatus = "COMPLETED"
	RunAborted   RunStatus = "ABORTED"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
	AlertSNS     AlertType = "sns"
)

// AlertLevel classifies alert severity.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// StoreKind selects the watermark store backend.
type StoreKind string

// StoreKind values enumerate the supported store backends.
const (
	StoreDynamoDB StoreKind = "dynamodb"
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)
