package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"stockagent/internal/provider"
	"stockagent/internal/quote"
)

// DefaultTTL is how long a fetched quote stays live.
const DefaultTTL = time.Hour

// Limiter grants or denies one upstream call. Non-blocking; retryAfter
// is how long until the next grant becomes possible.
type Limiter interface {
	Acquire() (granted bool, retryAfter time.Duration)
}

// entry stores the cached quote for one symbol with its expiry. Expired
// entries are kept as last-known-good fallbacks, not deleted; they are
// replaced in place on the next successful fetch.
type entry struct {
	expiresAt time.Time
	q         quote.Quote
}

// Cache serves quotes with time-based expiry, single-flight deduplication
// and stale fallback. For N concurrent requests on an uncached symbol,
// exactly one upstream call is made and all N callers share its result.
type Cache struct {
	TTL     time.Duration
	Limiter Limiter

	mu    sync.RWMutex
	items map[string]entry

	sf  singleflight.Group
	now func() time.Time
}

func New(ttl time.Duration, limiter Limiter) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		TTL:     ttl,
		Limiter: limiter,
		items:   make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns a quote for raw, consulting the cache first. Invalid
// symbols short-circuit before any cache or limiter interaction. All
// upstream failures come back as error-bearing quotes, never as a
// second return value, so every resolvable symbol yields a Quote.
func (c *Cache) Get(ctx context.Context, raw string, f provider.Fetcher) quote.Quote {
	symbol, err := quote.Normalize(raw)
	if err != nil {
		return quote.ErrorQuote(raw, err)
	}

	if q, ok := c.live(symbol); ok {
		return q
	}

	v, _, _ := c.sf.Do(symbol, func() (any, error) {
		return c.refresh(ctx, symbol, f), nil
	})
	return v.(quote.Quote)
}

// live returns the cached quote if it has not expired.
func (c *Cache) live(symbol string) (quote.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[symbol]
	if !ok || c.now().After(e.expiresAt) {
		return quote.Quote{}, false
	}
	return e.q, true
}

// stale returns the last stored quote regardless of expiry.
func (c *Cache) stale(symbol string) (quote.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[symbol]
	return e.q, ok
}

// refresh runs as the single in-flight fetcher for symbol.
func (c *Cache) refresh(ctx context.Context, symbol string, f provider.Fetcher) quote.Quote {
	// Double-check: a flight that completed between the caller's miss
	// and this one starting may have stored a fresh entry already.
	if q, ok := c.live(symbol); ok {
		return q
	}

	granted, retryAfter := c.Limiter.Acquire()
	if !granted {
		if q, ok := c.stale(symbol); ok {
			q.Stale = true
			return q.Annotate(quote.ErrRateLimited)
		}
		log.Debug().Str("symbol", symbol).Dur("retry_after", retryAfter).
			Msg("rate limit exhausted, no cached fallback")
		return quote.ErrorQuote(symbol, quote.ErrRateLimited)
	}

	q, err := f.Fetch(ctx, symbol)
	if err != nil {
		if prev, ok := c.stale(symbol); ok {
			log.Warn().Str("symbol", symbol).Err(err).
				Msg("refresh failed, serving stale quote")
			prev.Stale = true
			return prev.Annotate(err)
		}
		// Not cached: the next request retries instead of being stuck
		// on a cached failure.
		return quote.ErrorQuote(symbol, err)
	}

	c.mu.Lock()
	c.items[symbol] = entry{expiresAt: c.now().Add(c.TTL), q: q}
	c.mu.Unlock()
	return q
}
