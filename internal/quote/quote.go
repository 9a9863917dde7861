// Package quote provides the external price-fetching collaborator: a
// Provider interface, a generic JSON-over-HTTP implementation, and sanity
// checks applied to fetched quotes before they reach the evaluator.
//
// A fetch failure or unusable payload means "skip this call this cycle" —
// the caller records a warning and moves on; nothing is retried here.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/callpulse/call-engine/internal/model"
)

// ErrNoQuote is returned when the source yields no usable price for a symbol.
var ErrNoQuote = errors.New("quote: no usable price")

// Quote is one fetched price sample. DayHigh/DayLow are zero when the
// source only supplies the last trade price.
type Quote struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	DayHigh    decimal.Decimal `json:"day_high"`
	DayLow     decimal.Decimal `json:"day_low"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Observation converts the quote into the evaluator's input form.
func (q Quote) Observation() model.PriceObservation {
	return model.PriceObservation{
		Price:      q.Price,
		DayHigh:    q.DayHigh,
		DayLow:     q.DayLow,
		ObservedAt: q.ObservedAt,
	}
}

// Provider fetches a fresh quote for a symbol. Implementations may fail or
// time out; callers treat any error as "skip this call this cycle."
type Provider interface {
	Fetch(ctx context.Context, symbol string) (Quote, error)
}

// HTTPProvider fetches quotes from a JSON HTTP API:
//
//	GET {baseURL}/quote?symbol={symbol}
//	→ {"price": 123.45, "day_high": 125.0, "day_low": 119.8, "observed_at": "..."}
//
// day_high/day_low and observed_at are optional in the payload.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the given base URL with a
// per-request timeout.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context, symbol string) (Quote, error) {
	u := fmt.Sprintf("%s/quote?symbol=%s", p.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: build request for %s: %w", symbol, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("%w: %s returned status %d", ErrNoQuote, symbol, resp.StatusCode)
	}

	var payload struct {
		Price      decimal.Decimal `json:"price"`
		DayHigh    decimal.Decimal `json:"day_high"`
		DayLow     decimal.Decimal `json:"day_low"`
		ObservedAt time.Time       `json:"observed_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("%w: %s: %v", ErrNoQuote, symbol, err)
	}
	if !payload.Price.IsPositive() {
		return Quote{}, fmt.Errorf("%w: %s price %s", ErrNoQuote, symbol, payload.Price)
	}

	observedAt := payload.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	return Quote{
		Symbol:     symbol,
		Price:      payload.Price,
		DayHigh:    payload.DayHigh,
		DayLow:     payload.DayLow,
		ObservedAt: observedAt,
	}, nil
}
