package types

import "time"

// DateLayout is the wire format for fiscal/transaction dates.
const DateLayout = "2006-01-02"

// MaxErrorLength bounds the stored last-error text on a watermark row.
const MaxErrorLength = 512

// Symbol is a read-only tuple from the external symbol registry.
type Symbol struct {
	Symbol        string       `yaml:"symbol" json:"symbol"`
	Exchange      string       `yaml:"exchange" json:"exchange"`
	AssetType     string       `yaml:"assetType,omitempty" json:"assetType,omitempty"`
	Status        SymbolStatus `yaml:"status" json:"status"`
	DelistingDate *time.Time   `yaml:"delistingDate,omitempty" json:"delistingDate,omitempty"`
}

// IsDelistedAsOf reports whether the symbol's delisting date has passed.
// The comparison is date-granular: a symbol delisting today is already delisted.
func (s Symbol) IsDelistedAsOf(now time.Time) bool {
	if s.DelistingDate == nil {
		return false
	}
	d := s.DelistingDate.Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	return !d.After(today)
}

// DateRange is an inclusive span of observed fiscal or transaction dates.
type DateRange struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Watermark tracks extraction progress and health for one (target, symbol) pair.
// Symbol lifecycle columns are denormalized from the registry at registration
// time so eligibility can be re-derived without a cross-service join.
type Watermark struct {
	Target              string      `json:"target"`
	Symbol              string      `json:"symbol"`
	Exchange            string      `json:"exchange,omitempty"`
	AssetType           string      `json:"assetType,omitempty"`
	Eligibility         Eligibility `json:"eligibility"`
	DelistingDate       *time.Time  `json:"delistingDate,omitempty"`
	FirstObservedDate   *time.Time  `json:"firstObservedDate,omitempty"`
	LastObservedDate    *time.Time  `json:"lastObservedDate,omitempty"`
	LastSuccessAt       *time.Time  `json:"lastSuccessAt,omitempty"`
	ConsecutiveFailures int         `json:"consecutiveFailures"`
	LastError           string      `json:"lastError,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// RegistrySymbol returns the symbol lifecycle view carried on the watermark row.
func (w Watermark) RegistrySymbol() Symbol {
	status := SymbolActive
	if w.Eligibility == Delisted {
		status = SymbolDelisted
	}
	return Symbol{
		Symbol:        w.Symbol,
		Exchange:      w.Exchange,
		AssetType:     w.AssetType,
		Status:        status,
		DelistingDate: w.DelistingDate,
	}
}

// Policy holds the per-target eligibility thresholds. Staleness varies widely by
// target: a few days for time series, a quarter plus filing lag for financials,
// a year for slow-changing profile data.
type Policy struct {
	StalenessThresholdDays int `yaml:"stalenessDays" json:"stalenessDays"`
	MaxConsecutiveFailures int `yaml:"maxConsecutiveFailures" json:"maxConsecutiveFailures"`
	SkipRecentHours        int `yaml:"skipRecentHours" json:"skipRecentHours"`
}

// StalenessThreshold returns the staleness threshold as a duration.
func (p Policy) StalenessThreshold() time.Duration {
	return time.Duration(p.StalenessThresholdDays) * 24 * time.Hour
}

// SkipRecentWindow returns the repeat-attempt suppression window as a duration.
func (p Policy) SkipRecentWindow() time.Duration {
	return time.Duration(p.SkipRecentHours) * time.Hour
}

// Candidate pairs a symbol's registry view with its watermark, as returned by
// the store's eligibility listing.
type Candidate struct {
	Symbol    Symbol    `json:"symbol"`
	Watermark Watermark `json:"watermark"`
}

// EligibleSet is the result of an eligibility listing: the FETCH candidates in
// priority order plus skip counts for every excluded decision.
type EligibleSet struct {
	Candidates    []Candidate      `json:"candidates"`
	Skipped       map[Decision]int `json:"skipped,omitempty"`
	NewlyDelisted []string         `json:"newlyDelisted,omitempty"`
}

// StoreSummary aggregates watermark state for one target, for status reporting
// and external monitoring consumers.
type StoreSummary struct {
	Target        string              `json:"target"`
	Total         int                 `json:"total"`
	ByEligibility map[Eligibility]int `json:"byEligibility"`
	NeverFetched  int                 `json:"neverFetched"`
	Suspended     int                 `json:"suspended"`
	OldestSuccess *time.Time          `json:"oldestSuccess,omitempty"`
}

// RunSummary is the externally observed output of one batch run. Counts are
// reported per outcome category even when the run aborts early.
type RunSummary struct {
	RunID            string           `json:"runId"`
	Target           string           `json:"target"`
	Status           RunStatus        `json:"status"`
	Eligible         int              `json:"eligible"`
	Succeeded        int              `json:"succeeded"`
	Failed           int              `json:"failed"`
	Unprocessed      int              `json:"unprocessed"`
	Skipped          map[Decision]int `json:"skipped,omitempty"`
	StartedAt        time.Time        `json:"startedAt"`
	CompletedAt      time.Time        `json:"completedAt"`
	Elapsed          time.Duration    `json:"elapsed"`
	SymbolsPerMinute float64          `json:"symbolsPerMinute"`
	AbortReason      string           `json:"abortReason,omitempty"`
}

// Alert represents an alert event to be dispatched.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	Target    string                 `json:"target,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// TruncateError bounds an error message for storage on a watermark row.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorLength {
		return msg[:MaxErrorLength]
	}
	return msg
}
