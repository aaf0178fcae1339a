package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// CachingClient decorates a Searcher with a TTL result cache, in-flight
// request deduplication, and a rate limiter. It is injected where needed
// rather than living in package globals, so each process (or test) owns
// its own cache and budget.
type CachingClient struct {
	inner   Searcher
	ttl     time.Duration
	limiter *rate.Limiter
	group   singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result  string
	expires time.Time
}

var _ Searcher = (*CachingClient)(nil)

// NewCachingClient wraps inner with a cache of the given TTL and a
// limiter admitting ratePerSec queries with a burst of one.
func NewCachingClient(inner Searcher, ttl time.Duration, ratePerSec float64) *CachingClient {
	return &CachingClient{
		inner:   inner,
		ttl:     ttl,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		entries: make(map[string]cacheEntry),
	}
}

// Search returns a cached result when fresh, otherwise rate-limits and
// forwards to the inner client. Concurrent identical queries share one
// upstream call.
func (c *CachingClient) Search(ctx context.Context, query string) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[query]; ok && time.Now().Before(e.expires) {
		c.mu.Unlock()
		return e.result, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(query, func() (interface{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		result, err := c.inner.Search(ctx, query)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.entries[query] = cacheEntry{result: result, expires: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return result, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
