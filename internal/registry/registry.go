// Package registry loads the symbol universe that watermark rows are
// registered from. Sources return the full listing, active and delisted
// alike, so the store can mark delistings it has not seen yet.
package registry

import (
	"context"
	"fmt"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Source lists the symbol universe from a listing feed.
type Source interface {
	List(ctx context.Context) ([]types.Symbol, error)
}

// New builds a Source from configuration.
func New(cfg types.RegistryConfig) (Source, error) {
	switch cfg.Type {
	case "csv":
		if cfg.Path == "" {
			return nil, fmt.Errorf("registry: csv source requires a path")
		}
		return &CSVSource{Path: cfg.Path}, nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("registry: http source requires a url")
		}
		return NewHTTPSource(cfg.URL), nil
	default:
		return nil, fmt.Errorf("registry: unknown source type %q", cfg.Type)
	}
}
