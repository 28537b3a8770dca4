package chatapi

import (
	"sync"

	"golang.org/x/time/rate"
)

// customerLimiter keeps one token bucket per customer id.
type customerLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func newCustomerLimiter(rps float64, burst int) *customerLimiter {
	return &customerLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (c *customerLimiter) Allow(customerID string) bool {
	if c == nil || c.rps <= 0 {
		return true
	}
	return c.limiter(customerID).Allow()
}

func (c *customerLimiter) limiter(customerID string) *rate.Limiter {
	c.mu.RLock()
	l, ok := c.limiters[customerID]
	c.mu.RUnlock()
	if ok {
		return l
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[customerID]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(c.rps), c.burst)
	c.limiters[customerID] = l
	return l
}
