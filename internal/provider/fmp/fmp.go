package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockagent/internal/quote"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=fmp_test -destination=mock_http_client_test.go -source=fmp.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout bounds one upstream attempt.
const DefaultTimeout = 10 * time.Second

// Config controls the FMP client.
type Config struct {
	Name    string // display name, default: FMP
	BaseURL string // primary endpoint
	// FallbackBaseURL is an optional secondary endpoint of the same
	// provider, tried once when the primary fails at the transport
	// level. HTTP-level answers (404, 429, 5xx) are never retried.
	FallbackBaseURL string
	APIKey          string
	Timeout         time.Duration // per attempt
}

// Client fetches one quote per request from the FMP quote API and maps
// provider outcomes to the typed errors in the quote package.
type Client struct {
	cfg        Config
	httpClient HTTPClient
}

// Option is a configuration option for the client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream requests.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(cfg Config, options ...Option) *Client {
	if cfg.Name == "" {
		cfg.Name = "FMP"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://financialmodelingprep.com/api/v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{cfg: cfg, httpClient: http.DefaultClient}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return c.cfg.Name }

// Fetch issues one provider call for symbol. The symbol must already be
// normalized.
func (c *Client) Fetch(ctx context.Context, symbol string) (quote.Quote, error) {
	q, err := c.fetchFrom(ctx, c.cfg.BaseURL, symbol)
	if err != nil && c.cfg.FallbackBaseURL != "" && transportFailure(err) {
		return c.fetchFrom(ctx, c.cfg.FallbackBaseURL, symbol)
	}
	return q, err
}

func (c *Client) fetchFrom(ctx context.Context, base, symbol string) (quote.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/quote/%s", strings.TrimRight(base, "/"), url.PathEscape(symbol))
	if c.cfg.APIKey != "" {
		u += "?apikey=" + url.QueryEscape(c.cfg.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return quote.Quote{}, quote.WrapError(quote.KindUpstreamUnavailable, err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if timeoutError(err) {
			return quote.Quote{}, quote.WrapError(quote.KindTimeout, err, "upstream timeout")
		}
		return quote.Quote{}, quote.WrapError(quote.KindUpstreamUnavailable, err, "upstream request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return quote.Quote{}, quote.NewError(quote.KindNotFound, "symbol %s not found", symbol)
	case resp.StatusCode == http.StatusTooManyRequests:
		return quote.Quote{}, quote.NewError(quote.KindUpstreamThrottled, "provider throttled request for %s", symbol)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return quote.Quote{}, quote.NewError(quote.KindUpstreamUnavailable,
			"GET %s -> %d: %s", u, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var items []apiQuote
	if err := dec.Decode(&items); err != nil {
		return quote.Quote{}, quote.WrapError(quote.KindParseError, err, "decode quote payload")
	}
	if len(items) == 0 {
		// The provider answers unknown symbols with an empty array.
		return quote.Quote{}, quote.NewError(quote.KindNotFound, "symbol %s not found", symbol)
	}
	return c.toQuote(symbol, items[0]), nil
}

// apiQuote mirrors one element of the provider's quote response.
type apiQuote struct {
	Symbol    string      `json:"symbol"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	EPS       json.Number `json:"eps"`
	PE        json.Number `json:"pe"`
	MarketCap json.Number `json:"marketCap"`
	Timestamp int64       `json:"timestamp"`
}

func (c *Client) toQuote(symbol string, it apiQuote) quote.Quote {
	q := quote.Quote{
		Symbol:      symbol,
		CompanyName: it.Name,
		Price:       numToDecimal(it.Price),
		EPS:         numToDecimal(it.EPS),
		PERatio:     numToDecimal(it.PE),
		MarketCap:   it.MarketCap.String(),
		LastUpdated: parseEpochMaybeMillis(it.Timestamp, time.Now().UTC()),
		DataSource:  c.cfg.Name,
	}
	// Provider-supplied PE wins; derive only when price and EPS allow
	// it, never dividing by a zero EPS.
	if q.PERatio == nil && q.Price != nil && q.EPS != nil && !q.EPS.IsZero() {
		pe := q.Price.Div(*q.EPS)
		q.PERatio = &pe
	}
	return q
}

// numToDecimal converts an optional JSON number, treating absent or
// unparseable values as missing rather than failing the whole quote.
func numToDecimal(n json.Number) *decimal.Decimal {
	s := strings.TrimSpace(n.String())
	if s == "" || s == "null" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseEpochMaybeMillis(v int64, fallback time.Time) time.Time {
	if v <= 0 {
		return fallback
	}
	if v > 1_000_000_000_000 { // ms
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

func timeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// transportFailure reports whether err never reached an HTTP answer, so
// a secondary endpoint is worth one attempt.
func transportFailure(err error) bool {
	k := quote.KindOf(err)
	return k == quote.KindTimeout || k == quote.KindUpstreamUnavailable
}
