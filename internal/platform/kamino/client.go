// Package kamino is the REST client for the Kamino Lend public API, which
// provides market discovery and per-market obligation queries.
package kamino

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the Kamino Lend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Kamino API client.
//
// baseURL is the API root, e.g. "https://api.kamino.finance".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetMarkets returns the full list of known lending markets. The endpoint is
// unpaginated; the whole list arrives in one response.
func (c *Client) GetMarkets(ctx context.Context) ([]apiMarket, error) {
	body, err := c.doGet(ctx, "/kamino-market")
	if err != nil {
		return nil, fmt.Errorf("kamino: get markets: %w", err)
	}

	var markets []apiMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("kamino: decode markets: %w", err)
	}
	return markets, nil
}

// MarketEntry exposes the raw market listing fields to the catalog layer.
type MarketEntry struct {
	Address string
	Name    string
}

// ListMarkets returns market address/name pairs for catalog consumption.
func (c *Client) ListMarkets(ctx context.Context) ([]MarketEntry, error) {
	raw, err := c.GetMarkets(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]MarketEntry, 0, len(raw))
	for _, m := range raw {
		if m.LendingMarket == "" {
			continue
		}
		name := m.Name
		if name == "" {
			name = m.LendingMarket
		}
		entries = append(entries, MarketEntry{Address: m.LendingMarket, Name: name})
	}
	return entries, nil
}

// GetObligations returns the wallet's obligations within one market. A 404
// from the API means the wallet has no obligations there and yields an empty
// slice, not an error; transport and server errors are returned as errors so
// the caller can decide to skip the market.
func (c *Client) GetObligations(ctx context.Context, market, wallet string) ([]Obligation, error) {
	path := fmt.Sprintf("/kamino-market/%s/obligations?wallet=%s",
		url.PathEscape(market), url.QueryEscape(wallet))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("kamino: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kamino: get obligations %s: %w", market, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No obligations for this wallet in this market.
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kamino: read obligations %s: %w", market, err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("kamino: get obligations %s: %w", market, err)
	}

	var obligations []Obligation
	if err := json.Unmarshal(body, &obligations); err != nil {
		return nil, fmt.Errorf("kamino: decode obligations %s: %w", market, err)
	}
	return obligations, nil
}

// doGet sends an unauthenticated GET request to the Kamino API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
