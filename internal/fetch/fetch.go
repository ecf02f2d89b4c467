// Package fetch performs the extraction step for a single (target, symbol)
// pair: call the market-data API, stage the raw payload to S3, and notify the
// loader queue. The watermark store never sees payloads, only outcomes.
package fetch

import (
	"context"
	"time"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Request identifies one extraction unit of work. Since is the last observed
// date from the watermark, nil for a full-history fetch.
type Request struct {
	Target string
	Symbol string
	Since  *time.Time
}

// Result describes a completed extraction.
type Result struct {
	Observed types.DateRange
	Rows     int
	Location string // staged object location, e.g. s3://bucket/key
}

// Fetcher extracts data for one request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}
