package registry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Compile-time interface satisfaction check.
var _ Source = (*HTTPSource)(nil)

const defaultListingTimeout = 30 * time.Second

// HTTPSource fetches the listing-status CSV from an HTTP endpoint.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource creates an HTTPSource with a default timeout.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: defaultListingTimeout},
	}
}

func (s *HTTPSource) List(ctx context.Context) ([]types.Symbol, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry: fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry: listing endpoint returned %s", resp.Status)
	}

	syms, err := ParseListing(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("registry: parse listing: %w", err)
	}
	return syms, nil
}
