// Package rates fetches exchange-rate snapshots from a currency API.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricewise/catalog-ingest/config"
	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

const maxRatesResponseBytes = 4 << 20 // currency tables are well under 4MB

// ErrRateFetchFailed wraps every failure mode of the rate provider. Any rate
// fetch problem is fatal for an import run.
var ErrRateFetchFailed = errors.New("failed to fetch current exchange rates")

// Client fetches current exchange rates over HTTP. The endpoint serves one
// JSON document per base currency: {"<base>": {"<code>": <rate>, ...}}.
type Client struct {
	http     *http.Client
	endpoint string
}

// ClientOptions configures the rate client.
type ClientOptions struct {
	HTTPClient *http.Client
}

// NewClient constructs a rate client for the configured endpoint.
func NewClient(cfg config.RatesConfig, opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:     hc,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}
}

// FetchRates returns multipliers relative to baseCurrency, keyed by
// lower-cased currency code.
func (c *Client) FetchRates(ctx context.Context, baseCurrency string) (model.RateTable, error) {
	base := strings.ToLower(strings.TrimSpace(baseCurrency))
	if base == "" {
		return nil, fmt.Errorf("%w: base currency is required", ErrRateFetchFailed)
	}

	url := fmt.Sprintf("%s/currencies/%s.json", c.endpoint, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrRateFetchFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRateFetchFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRateFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRatesResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrRateFetchFailed, err)
	}

	// The document carries sibling metadata fields (date etc.) alongside the
	// rate table, so only the base key gets decoded strictly.
	var doc map[string]json.RawMessage
	if err = json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrRateFetchFailed, err)
	}

	tableRaw, ok := doc[base]
	if !ok {
		return nil, fmt.Errorf("%w: response missing %q table", ErrRateFetchFailed, base)
	}

	var raw map[string]decimal.Decimal
	if err = json.Unmarshal(tableRaw, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode %q table: %w", ErrRateFetchFailed, base, err)
	}

	table := make(model.RateTable, len(raw))
	for code, rate := range raw {
		table[strings.ToLower(code)] = rate
	}
	return table, nil
}
