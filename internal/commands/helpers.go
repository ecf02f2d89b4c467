// Package commands implements the CLI subcommands for the fintrade binary.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/kennydoit/fin-trade-extract/internal/alert"
	"github.com/kennydoit/fin-trade-extract/internal/fetch"
	"github.com/kennydoit/fin-trade-extract/internal/store"
	ddbstore "github.com/kennydoit/fin-trade-extract/internal/store/dynamodb"
	"github.com/kennydoit/fin-trade-extract/internal/store/memory"
	pgstore "github.com/kennydoit/fin-trade-extract/internal/store/postgres"
	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

const storeConnectTimeout = 10 * time.Second

// buildStore creates the configured watermark store. The caller owns the
// returned store's lifecycle and must Stop it.
func buildStore(ctx context.Context, cfg *types.ProjectConfig) (store.Store, error) {
	switch cfg.Store {
	case types.StoreDynamoDB:
		if cfg.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb config is required when store is dynamodb")
		}
		return ddbstore.New(cfg.DynamoDB)
	case types.StorePostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres config is required when store is postgres")
		}
		return pgstore.New(ctx, cfg.Postgres.DSN)
	case types.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// openStore builds and starts the store with a bounded connect timeout.
func openStore(cfg *types.ProjectConfig) (store.Store, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
	defer cancel()

	s, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating store: %w", err)
	}
	if err := s.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("connecting to store: %w", err)
	}
	cleanup := func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), storeConnectTimeout)
		defer stopCancel()
		_ = s.Stop(stopCtx)
	}
	return s, cleanup, nil
}

// buildDispatcher creates the alert dispatcher, defaulting to console when no
// sinks are configured.
func buildDispatcher(cfg *types.ProjectConfig) (*alert.Dispatcher, error) {
	configs := cfg.Alerts
	if len(configs) == 0 {
		configs = []types.AlertConfig{{Type: types.AlertConsole}}
	}
	return alert.NewDispatcher(configs)
}

// buildFetcher assembles the fetch pipeline from config. Staging and loader
// notification are optional; dryRun disables both so no AWS resources are
// touched.
func buildFetcher(ctx context.Context, cfg *types.ProjectConfig, dryRun bool) (fetch.Fetcher, error) {
	apiKey, err := fetch.ResolveAPIKey(ctx, cfg.Fetch, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving API key: %w", err)
	}

	var timeout time.Duration
	if cfg.Fetch.Timeout != "" {
		timeout, err = time.ParseDuration(cfg.Fetch.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing fetch timeout: %w", err)
		}
	}

	p := &fetch.Pipeline{
		API: fetch.NewAPIClient(cfg.Fetch.BaseURL, apiKey, timeout),
	}
	if dryRun {
		return p, nil
	}

	if cfg.Fetch.Bucket != "" {
		stager, err := fetch.NewStager(cfg.Fetch.Bucket, cfg.Fetch.Prefix)
		if err != nil {
			return nil, fmt.Errorf("creating stager: %w", err)
		}
		p.Stager = stager
	}
	if cfg.Fetch.QueueURL != "" {
		notifier, err := fetch.NewNotifier(cfg.Fetch.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("creating notifier: %w", err)
		}
		p.Notifier = notifier
	}
	return p, nil
}

// findTarget resolves a target name against configuration.
func findTarget(cfg *types.ProjectConfig, name string) (types.TargetConfig, error) {
	for _, t := range cfg.Targets {
		if t.Name == name {
			return t, nil
		}
	}
	return types.TargetConfig{}, fmt.Errorf("unknown target %q (configured: %s)", name, targetNames(cfg))
}

func targetNames(cfg *types.ProjectConfig) string {
	names := ""
	for i, t := range cfg.Targets {
		if i > 0 {
			names += ", "
		}
		names += t.Name
	}
	return names
}
