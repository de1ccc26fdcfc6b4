package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the normalized shape returned for a single symbol.
// Numeric fields are pointers because the provider may omit any of them;
// partial data is valid, not an error. MarketCap stays a string to avoid
// precision loss on very large values.
type Quote struct {
	Symbol      string           `json:"symbol"`
	CompanyName string           `json:"company_name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	EPS         *decimal.Decimal `json:"earnings_per_share,omitempty"`
	PERatio     *decimal.Decimal `json:"pe_ratio,omitempty"`
	MarketCap   string           `json:"market_cap,omitempty"`
	LastUpdated time.Time        `json:"last_updated"`
	DataSource  string           `json:"data_source,omitempty"`
	Stale       bool             `json:"stale,omitempty"`
	ErrorKind   Kind             `json:"error_kind,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Failed reports whether the quote carries an error. A stale-fallback
// quote has both populated fields and an error annotation.
func (q Quote) Failed() bool { return q.ErrorKind != "" }

// ErrorQuote builds a quote that carries only an error outcome.
func ErrorQuote(symbol string, err error) Quote {
	return Quote{
		Symbol:      symbol,
		LastUpdated: time.Now().UTC(),
		ErrorKind:   KindOf(err),
		Error:       err.Error(),
	}
}

// Annotate returns a copy of q carrying err as a soft-failure marker,
// leaving the previously fetched fields intact.
func (q Quote) Annotate(err error) Quote {
	q.ErrorKind = KindOf(err)
	q.Error = err.Error()
	return q
}
