package provider

import (
	"context"

	"stockagent/internal/quote"
)

// Fetcher performs one upstream call for one already-normalized symbol.
// Implementations map provider responses and transport failures to the
// typed errors in the quote package.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (quote.Quote, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, symbol string) (quote.Quote, error)

func (f FetchFunc) Name() string { return "func" }

func (f FetchFunc) Fetch(ctx context.Context, symbol string) (quote.Quote, error) {
	return f(ctx, symbol)
}
