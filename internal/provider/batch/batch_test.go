package batch_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stockagent/internal/provider"
	"stockagent/internal/provider/batch"
	"stockagent/internal/provider/cache"
	"stockagent/internal/provider/ratelimit"
	"stockagent/internal/quote"
)

func okFetcher(calls *int32) provider.FetchFunc {
	return func(_ context.Context, symbol string) (quote.Quote, error) {
		atomic.AddInt32(calls, 1)
		price := decimal.NewFromInt(int64(len(symbol)))
		return quote.Quote{Symbol: symbol, Price: &price, LastUpdated: time.Now().UTC()}, nil
	}
}

func newCoordinator(calls *int32) *batch.Coordinator {
	c := cache.New(time.Hour, ratelimit.NewTokenBucket(100, time.Minute))
	return batch.New(c, okFetcher(calls))
}

func TestFetchBatch_SizeBounds(t *testing.T) {
	var calls int32
	b := newCoordinator(&calls)

	_, err := b.FetchBatch(context.Background(), nil)
	require.Equal(t, quote.KindInvalidBatchSize, quote.KindOf(err))

	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = fmt.Sprintf("S%d", i)
	}
	_, err = b.FetchBatch(context.Background(), eleven)
	require.Equal(t, quote.KindInvalidBatchSize, quote.KindOf(err))
	require.Zero(t, atomic.LoadInt32(&calls), "no fetch starts on an invalid batch")

	ten := eleven[:10]
	out, err := b.FetchBatch(context.Background(), ten)
	require.NoError(t, err)
	require.Len(t, out, 10)
}

func TestFetchBatch_OrderAndIsolation(t *testing.T) {
	var calls int32
	b := newCoordinator(&calls)

	out, err := b.FetchBatch(context.Background(), []string{"msft", "INVALID@@", "AAPL"})
	require.NoError(t, err)
	require.Len(t, out, 3)

	require.Equal(t, "MSFT", out[0].Symbol)
	require.False(t, out[0].Failed())

	require.Equal(t, quote.KindInvalidSymbol, out[1].ErrorKind)

	require.Equal(t, "AAPL", out[2].Symbol)
	require.False(t, out[2].Failed())
}

func TestFetchBatch_DuplicatesKeepPositions(t *testing.T) {
	var calls int32
	b := newCoordinator(&calls)

	out, err := b.FetchBatch(context.Background(), []string{"nvda", "NVDA", " nvda "})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, q := range out {
		require.Equalf(t, "NVDA", q.Symbol, "position %d", i)
		require.False(t, q.Failed())
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "duplicates share one upstream fetch")
}

func TestFetchBatch_UpstreamFailureDoesNotSinkBatch(t *testing.T) {
	c := cache.New(time.Hour, ratelimit.NewTokenBucket(100, time.Minute))
	f := provider.FetchFunc(func(_ context.Context, symbol string) (quote.Quote, error) {
		if symbol == "BAD" {
			return quote.Quote{}, quote.ErrUpstreamUnavailable
		}
		price := decimal.NewFromInt(1)
		return quote.Quote{Symbol: symbol, Price: &price, LastUpdated: time.Now().UTC()}, nil
	})
	b := batch.New(c, f)

	out, err := b.FetchBatch(context.Background(), []string{"GOOD", "BAD", "ALSOGOOD"})
	require.NoError(t, err)
	require.False(t, out[0].Failed())
	require.Equal(t, quote.KindUpstreamUnavailable, out[1].ErrorKind)
	require.False(t, out[2].Failed())
}

func TestFetchBatch_RateLimitCeiling(t *testing.T) {
	var calls int32
	c := cache.New(time.Hour, ratelimit.NewTokenBucket(5, time.Minute))
	b := batch.New(c, okFetcher(&calls))

	out, err := b.FetchBatch(context.Background(),
		[]string{"AA", "BB", "CC", "DD", "EE", "FF", "GG", "HH", "II", "JJ"})
	require.NoError(t, err)
	require.Len(t, out, 10)

	require.LessOrEqual(t, atomic.LoadInt32(&calls), int32(5),
		"at most 5 upstream calls inside one refill window")

	denied := 0
	for _, q := range out {
		if q.ErrorKind == quote.KindRateLimited {
			denied++
		}
	}
	require.Equal(t, 10-int(atomic.LoadInt32(&calls)), denied,
		"every position beyond the budget is rate limited, not silently dropped")
}
