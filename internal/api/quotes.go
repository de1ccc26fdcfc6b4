package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"stockagent/internal/provider"
	"stockagent/internal/provider/batch"
	"stockagent/internal/provider/cache"
	"stockagent/internal/provider/ratelimit"
	"stockagent/internal/quote"
)

// QuoteHandler serves the stock-quote endpoints backed by the cache,
// rate limiter and upstream client. The alert and dashboard subsystems
// consume quotes only through these routes.
type QuoteHandler struct {
	Cache   *cache.Cache
	Fetcher provider.Fetcher
	Batch   *batch.Coordinator
	Limiter *ratelimit.TokenBucket
}

func NewQuoteHandler(c *cache.Cache, f provider.Fetcher, b *batch.Coordinator, l *ratelimit.TokenBucket) *QuoteHandler {
	return &QuoteHandler{Cache: c, Fetcher: f, Batch: b, Limiter: l}
}

type peRatioResponse struct {
	Symbol      string           `json:"symbol"`
	PERatio     *decimal.Decimal `json:"pe_ratio"`
	Price       *decimal.Decimal `json:"price"`
	EPS         *decimal.Decimal `json:"earnings_per_share"`
	LastUpdated time.Time        `json:"last_updated"`
	DataSource  string           `json:"data_source,omitempty"`
	Stale       bool             `json:"stale,omitempty"`
	Error       string           `json:"error,omitempty"`
}

type stockInfoResponse struct {
	Symbol      string           `json:"symbol"`
	CompanyName string           `json:"company_name,omitempty"`
	PERatio     *decimal.Decimal `json:"pe_ratio"`
	Price       *decimal.Decimal `json:"price"`
	EPS         *decimal.Decimal `json:"earnings_per_share"`
	MarketCap   string           `json:"market_cap,omitempty"`
	LastUpdated time.Time        `json:"last_updated"`
	Stale       bool             `json:"stale,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// GetPERatio handles GET /pe-ratio/{symbol}.
func (h *QuoteHandler) GetPERatio(w http.ResponseWriter, r *http.Request) {
	q := h.Cache.Get(r.Context(), mux.Vars(r)["symbol"], h.Fetcher)
	if h.rejected(w, r, q) {
		return
	}
	writeJSON(w, http.StatusOK, peRatioResponse{
		Symbol:      q.Symbol,
		PERatio:     q.PERatio,
		Price:       q.Price,
		EPS:         q.EPS,
		LastUpdated: q.LastUpdated,
		DataSource:  q.DataSource,
		Stale:       q.Stale,
		Error:       q.Error,
	})
}

// GetStockInfo handles GET /stock-info/{symbol}.
func (h *QuoteHandler) GetStockInfo(w http.ResponseWriter, r *http.Request) {
	q := h.Cache.Get(r.Context(), mux.Vars(r)["symbol"], h.Fetcher)
	if h.rejected(w, r, q) {
		return
	}
	writeJSON(w, http.StatusOK, stockInfoResponse{
		Symbol:      q.Symbol,
		CompanyName: q.CompanyName,
		PERatio:     q.PERatio,
		Price:       q.Price,
		EPS:         q.EPS,
		MarketCap:   q.MarketCap,
		LastUpdated: q.LastUpdated,
		Stale:       q.Stale,
		Error:       q.Error,
	})
}

type batchResponse struct {
	Symbols []quote.Quote `json:"symbols"`
}

// GetBatch handles GET /pe-ratios/batch?symbols=A,B,C. It always
// answers 200 with per-entry errors embedded, except for request-level
// validation failures.
func (h *QuoteHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	symbols := splitCSV(raw)

	out, err := h.Batch.FetchBatch(r.Context(), symbols)
	if err != nil {
		writeError(w, r, statusForKind(quote.KindOf(err)),
			string(quote.KindOf(err)), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Symbols: out})
}

// rejected writes the error answer for hard failures. Stale fallbacks
// still carry data and go out as 200 with the error annotated.
func (h *QuoteHandler) rejected(w http.ResponseWriter, r *http.Request, q quote.Quote) bool {
	if !q.Failed() || q.Stale {
		return false
	}
	status := statusForKind(q.ErrorKind)
	if status == http.StatusTooManyRequests && h.Limiter != nil {
		if wait := h.Limiter.RetryAfter(); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	}
	writeError(w, r, status, string(q.ErrorKind), q.Error)
	return true
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
