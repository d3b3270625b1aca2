package esi

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a global minimum interval between request dispatches.
// One Limiter is shared by reference across every worker of a Fetcher; it is
// the only state those workers mutate together. The underlying token bucket
// is mutex guarded, with a burst of one so no two dispatches are closer than
// 1/requestsPerSecond.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a limiter allowing requestsPerSecond dispatches per second.
// A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64) *Limiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Limiter{lim: rate.NewLimiter(limit, 1)}
}

// Acquire blocks until the caller may dispatch a request or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Interval is the minimum spacing between two dispatches.
func (l *Limiter) Interval() time.Duration {
	limit := l.lim.Limit()
	if limit == rate.Inf || limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
