package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

const defaultAPITimeout = 60 * time.Second

// APIClient calls the market-data HTTP API. One call returns the full
// available history for a (target, symbol) pair as JSON rows.
type APIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAPIClient creates an API client. A zero timeout uses the default.
func NewAPIClient(baseURL, apiKey string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	return &APIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// payload is the API response shape. Every row carries a date; the remaining
// fields pass through untouched to the staging object.
type payload struct {
	Symbol string            `json:"symbol"`
	Rows   []json.RawMessage `json:"rows"`
}

type rowDate struct {
	Date string `json:"date"`
}

// Call fetches one pair and returns the raw response body alongside the
// parsed result. Errors carry a failure category.
func (c *APIClient) Call(ctx context.Context, req Request) ([]byte, *Result, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v1/%s", c.baseURL, req.Target))
	if err != nil {
		return nil, nil, Permanent("build url", err)
	}
	q := u.Query()
	q.Set("symbol", req.Symbol)
	if req.Since != nil {
		q.Set("since", req.Since.Format(types.DateLayout))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, Permanent("build request", err)
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, nil, classifyTransport("api call", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, Transient("read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, nil, Transient("api call", fmt.Errorf("rate limited: %s", resp.Status))
	case resp.StatusCode >= 500:
		return nil, nil, Transient("api call", fmt.Errorf("upstream error: %s", resp.Status))
	case resp.StatusCode >= 400:
		return nil, nil, Permanent("api call", fmt.Errorf("rejected: %s", resp.Status))
	}

	result, err := parsePayload(body)
	if err != nil {
		return nil, nil, err
	}
	return body, result, nil
}

// parsePayload decodes the response body and derives the observed date range.
func parsePayload(body []byte) (*Result, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, Permanent("decode response", err)
	}
	if len(p.Rows) == 0 {
		return nil, Permanent("decode response", fmt.Errorf("no rows returned"))
	}

	var observed types.DateRange
	for i, raw := range p.Rows {
		var rd rowDate
		if err := json.Unmarshal(raw, &rd); err != nil {
			return nil, Permanent("decode response", fmt.Errorf("row %d: %w", i, err))
		}
		d, err := time.Parse(types.DateLayout, rd.Date)
		if err != nil {
			return nil, Permanent("decode response", fmt.Errorf("row %d date %q: %w", i, rd.Date, err))
		}
		if i == 0 || d.Before(observed.First) {
			observed.First = d
		}
		if i == 0 || d.After(observed.Last) {
			observed.Last = d
		}
	}

	return &Result{Observed: observed, Rows: len(p.Rows)}, nil
}
