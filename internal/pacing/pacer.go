// Package pacing enforces a minimum interval between calls to an external
// collaborator. A Pacer is safe for concurrent use; all workers sharing one
// Pacer are paced together.
package pacing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer admits one call per interval.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New returns a Pacer admitting one call every interval. The first call is
// admitted immediately.
func New(interval time.Duration) *Pacer {
	return &Pacer{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing wait: %w", err)
	}
	return nil
}

// Interval returns the configured minimum spacing.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
