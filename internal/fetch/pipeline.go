package fetch

import (
	"context"
	"log/slog"
)

// Compile-time interface satisfaction check.
var _ Fetcher = (*Pipeline)(nil)

// Pipeline is the production Fetcher: API call, S3 staging, loader
// notification. Stager and Notifier are optional; when nil that step is
// skipped, which is how dry runs avoid touching AWS.
type Pipeline struct {
	API      *APIClient
	Stager   *Stager
	Notifier *Notifier
	Logger   *slog.Logger
}

func (p *Pipeline) Fetch(ctx context.Context, req Request) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	body, result, err := p.API.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.Stager != nil {
		location, err := p.Stager.Stage(ctx, req, body)
		if err != nil {
			return nil, err
		}
		result.Location = location
	}

	if p.Notifier != nil {
		err := p.Notifier.Notify(ctx, LoadNotification{
			Target:   req.Target,
			Symbol:   req.Symbol,
			Location: result.Location,
			Rows:     result.Rows,
			Observed: result.Observed,
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("fetched pair",
		"target", req.Target,
		"symbol", req.Symbol,
		"rows", result.Rows,
		"location", result.Location)
	return result, nil
}
