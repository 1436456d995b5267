package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer sleeps for a random duration in [Min, Max] between requests.
// The delay is fixed politeness, it does not react to the server.
type Pacer struct {
	Min time.Duration
	Max time.Duration
}

// NoDelay is a Pacer that never sleeps.
var NoDelay = Pacer{}

// Next returns the next delay.
func (p Pacer) Next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rand.Int64N(int64(p.Max-p.Min)+1))
}

// Wait sleeps for the next delay or until ctx is done.
func (p Pacer) Wait(ctx context.Context) error {
	d := p.Next()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
