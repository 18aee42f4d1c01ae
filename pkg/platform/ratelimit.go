package platform

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a per-account token bucket so
// bursts of changes cannot trip the platform's rate limits.
type RateLimitedClient struct {
	inner Client
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitedClient wraps inner with per-account rate limiting.
func NewRateLimitedClient(inner Client, requestsPerSecond float64, burst int) *RateLimitedClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		inner:    inner,
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Apply waits for the account's limiter, then delegates to the wrapped
// client. A cancelled context surfaces as the context's error.
func (c *RateLimitedClient) Apply(ctx context.Context, req *ChangeRequest) (*ChangeResult, error) {
	if err := c.limiter(req.AccountID).Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Apply(ctx, req)
}

func (c *RateLimitedClient) limiter(accountID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[accountID]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[accountID] = l
	}
	return l
}
