package errclass

import (
	"context"
	"errors"
	"time"
)

// Retryer executes operations with classification-aware exponential backoff.
// Each failure is classified fresh so a connection loss followed by a rate
// limit switches to the rate-limit schedule mid-loop.
type Retryer struct {
	stats *Collector
	sleep func(ctx context.Context, d time.Duration) bool
}

// RetryerOption customises a Retryer.
type RetryerOption func(*Retryer)

// WithStats records every classified failure into the given collector.
func WithStats(stats *Collector) RetryerOption {
	return func(r *Retryer) {
		if stats != nil {
			r.stats = stats
		}
	}
}

// NewRetryer constructs a Retryer.
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{sleep: sleepWithContext}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do executes fn until it succeeds, exhausts the strategy of its last
// classification, or the context is cancelled. The original error is
// returned unwrapped so callers can still inspect it.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	var attempt int
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		class := Classify(err)
		if r.stats != nil {
			r.stats.Record(class)
		}
		strategy := PolicyFor(class)
		if !strategy.ShouldRetry || attempt >= strategy.MaxRetries {
			return err
		}
		if !r.sleep(ctx, strategy.Delay(attempt)) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		attempt++
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
