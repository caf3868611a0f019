package loader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	domrepo "CandleVault/internal/domain/repository"
	"CandleVault/internal/service/ratelimit"
	xhttp "CandleVault/pkg/http"
)

// Client talks to the candle loader microservice. It implements both
// CandleLoader (fetch-and-store a missing range) and TickerSource (eligible
// instrument universe). The loader service owns the upstream exchange
// protocol; this adapter only speaks its internal HTTP API.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter

	// token-bucket parameters for loader calls, per exchange
	burst     float64
	refillSec float64
}

// Option configures Client.
type Option func(*Client)

// WithRateLimit caps loader calls per exchange (burst capacity, refill per second).
func WithRateLimit(burst, refillPerSec float64) Option {
	return func(c *Client) {
		c.burst = burst
		c.refillSec = refillPerSec
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = xhttp.NewClient(xhttp.WithTimeout(d))
	}
}

// New creates a loader service client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		http:      xhttp.NewClient(xhttp.WithTimeout(2 * time.Minute)),
		limiter:   ratelimit.New(),
		burst:     5,
		refillSec: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loadResponse struct {
	Saved int `json:"saved"`
}

// LoadAndSaveCandles asks the loader service to fetch and persist the full
// range for one instrument. Returns the number of rows newly written; zero
// means the instrument is inactive upstream.
func (c *Client) LoadAndSaveCandles(ctx context.Context, exchange, ticker, untilDate string, tf domrepo.Timeframe, period string) (int, error) {
	if err := c.waitForSlot(ctx, exchange); err != nil {
		return 0, err
	}

	var res loadResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/api/candles/load",
		Body: map[string]string{
			"exchange":  exchange,
			"ticker":    ticker,
			"untilDate": untilDate,
			"timeframe": string(tf),
			"period":    period,
		},
		Headers: map[string]string{"Content-Type": "application/json"},
	}, &res)
	if err != nil {
		return 0, fmt.Errorf("loader load %s: %w", ticker, err)
	}
	return res.Saved, nil
}

// ListValidTickers returns instrument ids whose 24h volume clears minVolume.
func (c *Client) ListValidTickers(ctx context.Context, minVolume float64, sorted bool) ([]string, error) {
	var tickers []string
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/tickers/valid",
		QueryParams: map[string][]string{
			"minVolume": {strconv.FormatFloat(minVolume, 'f', -1, 64)},
			"sorted":    {strconv.FormatBool(sorted)},
		},
	}, &tickers)
	if err != nil {
		return nil, fmt.Errorf("loader tickers: %w", err)
	}
	return tickers, nil
}

// waitForSlot blocks until the per-exchange token bucket admits one call.
func (c *Client) waitForSlot(ctx context.Context, exchange string) error {
	for !c.limiter.Allow("loader:"+exchange, c.burst, c.refillSec) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}
