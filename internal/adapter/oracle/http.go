package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

// priceResponse is the upstream price API payload.
type priceResponse struct {
	Asset     string          `json:"asset"`
	PriceUsd  decimal.Decimal `json:"price_usd"`
	Available bool            `json:"available"`
}

// HTTPOracle resolves USD unit prices from an HTTP price API. A 404
// means the asset is unpriced at that timestamp and is not an error;
// transient failures are retried with exponential backoff.
type HTTPOracle struct {
	baseURL string
	client  *http.Client

	maxElapsedTime time.Duration
}

// NewHTTPOracle creates an HTTPOracle against the given base URL.
func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL:        baseURL,
		client:         &http.Client{Timeout: timeout},
		maxElapsedTime: 30 * time.Second,
	}
}

// GetUnitPrice implements usecase.PriceOracle.
func (o *HTTPOracle) GetUnitPrice(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error) {
	var (
		price  decimal.Decimal
		priced bool
	)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = o.maxElapsedTime

	err := backoff.Retry(func() error {
		p, ok, err := o.fetch(ctx, asset, at)
		if err != nil {
			return err
		}

		price, priced = p, ok
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return decimal.Zero, false, err
	}

	return price, priced, nil
}

func (o *HTTPOracle) fetch(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error) {
	u := fmt.Sprintf("%s/v1/prices?asset=%s&at=%s",
		o.baseURL, url.QueryEscape(asset), url.QueryEscape(at.UTC().Format(time.RFC3339)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, false, backoff.Permanent(err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Zero, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return decimal.Zero, false, nil
	case resp.StatusCode >= 500:
		return decimal.Zero, false, fmt.Errorf("price api returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return decimal.Zero, false, backoff.Permanent(fmt.Errorf("price api returned %d", resp.StatusCode))
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, false, backoff.Permanent(fmt.Errorf("failed to decode price response: %w", err))
	}

	if !body.Available {
		return decimal.Zero, false, nil
	}

	return body.PriceUsd, true, nil
}
