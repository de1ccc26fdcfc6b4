package batch

import (
	"context"
	"sync"

	"stockagent/internal/provider"
	"stockagent/internal/provider/cache"
	"stockagent/internal/quote"
)

// MaxSymbols bounds one batch request.
const (
	MinSymbols = 1
	MaxSymbols = 10
)

// Coordinator fans a batch of symbols out through the cache. Concurrency
// is bounded only by the rate limiter behind the cache: cache hits run
// uncontended and upstream calls are already throttled, so no extra
// parallelism cap is applied here.
type Coordinator struct {
	Cache   *cache.Cache
	Fetcher provider.Fetcher
}

func New(c *cache.Cache, f provider.Fetcher) *Coordinator {
	return &Coordinator{Cache: c, Fetcher: f}
}

// FetchBatch resolves each raw symbol concurrently and returns results
// in input order, duplicates included. A failure at one position sets
// that slot's error fields and leaves the other slots untouched; only a
// batch outside the 1-10 size bounds fails the whole call, before any
// fetch starts.
func (b *Coordinator) FetchBatch(ctx context.Context, rawSymbols []string) ([]quote.Quote, error) {
	if len(rawSymbols) < MinSymbols || len(rawSymbols) > MaxSymbols {
		return nil, quote.NewError(quote.KindInvalidBatchSize,
			"batch size %d out of range [%d,%d]", len(rawSymbols), MinSymbols, MaxSymbols)
	}

	results := make([]quote.Quote, len(rawSymbols))
	var wg sync.WaitGroup
	for i, raw := range rawSymbols {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			// Duplicate symbols share one upstream fetch through the
			// cache's single-flight; each still fills its own slot.
			results[i] = b.Cache.Get(ctx, raw, b.Fetcher)
		}(i, raw)
	}
	wg.Wait()
	return results, nil
}
