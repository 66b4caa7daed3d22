package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outbound API calls to a fixed requests-per-second budget.
// Each upstream endpoint gets its own Limiter; limiters are owned by the
// client that talks to that endpoint and are never shared across clients.
type Limiter struct {
	rl *rate.Limiter
}

// New creates a limiter allowing rps requests per second with a small burst
// so a batch start does not serialize the first few calls.
func New(rps float64) *Limiter {
	if rps <= 0 {
		rps = 1.0
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request slot is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}
