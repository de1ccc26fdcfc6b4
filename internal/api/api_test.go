package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockagent/internal/alert"
	"stockagent/internal/news"
	"stockagent/internal/provider/batch"
	"stockagent/internal/provider/cache"
	"stockagent/internal/provider/ratelimit"
	"stockagent/internal/quote"
	"stockagent/internal/storage"
)

type stubFetcher struct {
	calls  int
	quotes map[string]quote.Quote
	errs   map[string]error
}

func (s *stubFetcher) Name() string { return "stub" }

func (s *stubFetcher) Fetch(_ context.Context, symbol string) (quote.Quote, error) {
	s.calls++
	if err, ok := s.errs[symbol]; ok {
		return quote.Quote{}, err
	}
	if q, ok := s.quotes[symbol]; ok {
		return q, nil
	}
	return quote.Quote{}, quote.NewError(quote.KindNotFound, "no quote for %s", symbol)
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testQuote(symbol string) quote.Quote {
	return quote.Quote{
		Symbol:      symbol,
		CompanyName: symbol + " Inc.",
		Price:       dec("150.25"),
		EPS:         dec("6.01"),
		PERatio:     dec("25"),
		MarketCap:   "2500000000000",
		LastUpdated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DataSource:  "stub",
	}
}

// newTestServer wires the real router over a stub upstream and a fresh
// in-memory database.
func newTestServer(t *testing.T, fetcher *stubFetcher, limiterCap int) (*httptest.Server, *storage.DB) {
	t.Helper()

	db, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bucket := ratelimit.NewTokenBucket(limiterCap, time.Minute)
	c := cache.New(time.Hour, bucket)
	coord := batch.New(c, fetcher)

	alertStore := alert.NewStore(db)
	newsStore := news.NewStore(db)

	h := NewRouter(
		NewQuoteHandler(c, fetcher, coord, bucket),
		NewAlertHandler(alertStore),
		NewNewsHandler(newsStore, news.NewService(nil, alertStore, newsStore)),
	)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, db
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestGetPERatio(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]quote.Quote{"AAPL": testQuote("AAPL")}}
	srv, _ := newTestServer(t, fetcher, 5)

	var got peRatioResponse
	status := getJSON(t, srv.URL+"/pe-ratio/aapl", &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AAPL", got.Symbol)
	require.NotNil(t, got.PERatio)
	assert.True(t, got.PERatio.Equal(decimal.RequireFromString("25")))
	require.NotNil(t, got.Price)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("150.25")))
	assert.Empty(t, got.Error)
	assert.Equal(t, 1, fetcher.calls)

	// Second request is a cache hit.
	status = getJSON(t, srv.URL+"/pe-ratio/AAPL", &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, fetcher.calls)
}

func TestGetPERatio_InvalidSymbol(t *testing.T) {
	fetcher := &stubFetcher{}
	srv, _ := newTestServer(t, fetcher, 5)

	var got ErrorResponse
	status := getJSON(t, srv.URL+"/pe-ratio/BAD@@SYM", &got)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(quote.KindInvalidSymbol), got.Error.Code)
	assert.NotEmpty(t, got.Error.RequestID)
	assert.Equal(t, 0, fetcher.calls, "invalid symbol must not reach upstream")
}

func TestGetPERatio_NotFound(t *testing.T) {
	fetcher := &stubFetcher{}
	srv, _ := newTestServer(t, fetcher, 5)

	var got ErrorResponse
	status := getJSON(t, srv.URL+"/pe-ratio/ZZZQ", &got)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(quote.KindNotFound), got.Error.Code)
}

func TestGetPERatio_RateLimited(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]quote.Quote{"AAPL": testQuote("AAPL")}}
	srv, _ := newTestServer(t, fetcher, 1)

	status := getJSON(t, srv.URL+"/pe-ratio/AAPL", nil)
	require.Equal(t, http.StatusOK, status)

	// Uncached symbol with the bucket empty: hard 429 with Retry-After.
	resp, err := http.Get(srv.URL + "/pe-ratio/MSFT")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var got ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, string(quote.KindRateLimited), got.Error.Code)
}

func TestGetStockInfo(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]quote.Quote{"MSFT": testQuote("MSFT")}}
	srv, _ := newTestServer(t, fetcher, 5)

	var got stockInfoResponse
	status := getJSON(t, srv.URL+"/stock-info/msft", &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "MSFT", got.Symbol)
	assert.Equal(t, "MSFT Inc.", got.CompanyName)
	assert.Equal(t, "2500000000000", got.MarketCap)
}

func TestGetBatch(t *testing.T) {
	fetcher := &stubFetcher{quotes: map[string]quote.Quote{
		"AAPL": testQuote("AAPL"),
		"MSFT": testQuote("MSFT"),
	}}
	srv, _ := newTestServer(t, fetcher, 5)

	var got batchResponse
	status := getJSON(t, srv.URL+"/pe-ratios/batch?symbols=msft,BAD@@,aapl", &got)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, got.Symbols, 3)

	assert.Equal(t, "MSFT", got.Symbols[0].Symbol)
	assert.False(t, got.Symbols[0].Failed())

	assert.Equal(t, quote.KindInvalidSymbol, got.Symbols[1].ErrorKind)

	assert.Equal(t, "AAPL", got.Symbols[2].Symbol)
	assert.False(t, got.Symbols[2].Failed())
}

func TestGetBatch_SizeValidation(t *testing.T) {
	fetcher := &stubFetcher{}
	srv, _ := newTestServer(t, fetcher, 5)

	var got ErrorResponse
	status := getJSON(t, srv.URL+"/pe-ratios/batch", &got)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(quote.KindInvalidBatchSize), got.Error.Code)

	symbols := "A"
	for i := 0; i < 10; i++ {
		symbols += fmt.Sprintf(",S%d", i)
	}
	status = getJSON(t, srv.URL+"/pe-ratios/batch?symbols="+symbols, &got)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 0, fetcher.calls, "oversized batch must not reach upstream")
}

func TestAlertCRUD(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{}, 5)

	body := `{"symbol":" aapl ","alert_type":"price","condition":"above","threshold_value":200,"message":"AAPL above 200"}`
	resp, err := http.Post(srv.URL+"/api/alerts", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	var created alert.Alert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "AAPL", created.Symbol, "symbol is stored canonical")
	assert.True(t, created.IsActive)
	require.NotZero(t, created.ID)

	var got alert.Alert
	status := getJSON(t, fmt.Sprintf("%s/api/alerts/%d", srv.URL, created.ID), &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.ID, got.ID)

	var list alertListResponse
	status = getJSON(t, srv.URL+"/api/alerts?symbol=aapl", &list)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Alerts, 1)

	update := `{"is_active":false,"message":"paused"}`
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/alerts/%d", srv.URL, created.ID), bytes.NewBufferString(update))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var updated alert.Alert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "paused", updated.Message)
	assert.NotNil(t, updated.UpdatedAt)

	req, err = http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/alerts/%d", srv.URL, created.ID), nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	status = getJSON(t, fmt.Sprintf("%s/api/alerts/%d", srv.URL, created.ID), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAlertCreate_Invalid(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{}, 5)

	cases := []struct {
		name string
		body string
	}{
		{"bad symbol", `{"symbol":"NOPE!!","alert_type":"price","condition":"above"}`},
		{"missing type", `{"symbol":"AAPL","condition":"above"}`},
		{"bad json", `{"symbol":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/alerts", "application/json", bytes.NewBufferString(tc.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestNewsEndpoints(t *testing.T) {
	srv, db := newTestServer(t, &stubFetcher{}, 5)

	store := news.NewStore(db)
	for i, item := range []news.Item{
		{Title: "AAPL beats estimates", Link: "https://example.com/1", Source: "Yahoo Finance", KeywordsMatched: "AAPL", IsRelevant: true},
		{Title: "MSFT announces layoffs", Link: "https://example.com/2", Source: "MarketWatch", KeywordsMatched: "MSFT", IsRelevant: true},
	} {
		item.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		ok, err := store.Insert(context.Background(), item)
		require.NoError(t, err)
		require.True(t, ok)
	}

	var list newsListResponse
	status := getJSON(t, srv.URL+"/api/news", &list)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "MSFT announces layoffs", list.Items[0].Title, "newest first")

	status = getJSON(t, srv.URL+"/api/news?keyword=AAPL", &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "AAPL beats estimates", list.Items[0].Title)

	var item news.Item
	status = getJSON(t, fmt.Sprintf("%s/api/news/%d", srv.URL, list.Items[0].ID), &item)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AAPL beats estimates", item.Title)

	status = getJSON(t, srv.URL+"/api/news/99999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	var sources map[string][]string
	status = getJSON(t, srv.URL+"/api/news/sources/list", &sources)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"MarketWatch", "Yahoo Finance"}, sources["sources"])
}

func TestHealthzAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{}, 5)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "fixed-id-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fixed-id-123", resp.Header.Get(RequestIDHeader))
}
