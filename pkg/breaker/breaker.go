// Package breaker implements a three-state circuit breaker used to protect
// remote storage dependencies. It counts consecutive failures, rejects calls
// while open, and allows a single probe call once the recovery timeout has
// elapsed.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit is open and the call was rejected
// without invoking the wrapped operation.
var ErrOpen = errors.New("breaker: circuit breaker is open")

// State is the circuit state.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected immediately
	StateHalfOpen              // exactly one probe call is allowed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker wraps an arbitrary operation with circuit breaking. It is safe for
// concurrent use; all state transitions happen under the mutex while the
// wrapped operation itself runs outside it.
type Breaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	isExpected       func(error) bool
	now              func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	probeInFlight   bool
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
}

// Option customises a Breaker.
type Option func(*Breaker)

// WithName labels the breaker for stats and logging.
func WithName(name string) Option {
	return func(b *Breaker) {
		if name != "" {
			b.name = name
		}
	}
}

// WithExpectedError restricts which failures count toward opening the
// circuit. Errors the predicate rejects are re-raised without affecting
// circuit state.
func WithExpectedError(pred func(error) bool) Option {
	return func(b *Breaker) {
		if pred != nil {
			b.isExpected = pred
		}
	}
}

// WithClock overrides the time source (primarily for testing).
func WithClock(clock func() time.Time) Option {
	return func(b *Breaker) {
		if clock != nil {
			b.now = clock
		}
	}
}

// New constructs a closed breaker. Non-positive thresholds and timeouts fall
// back to the storage defaults.
func New(failureThreshold int, recoveryTimeout time.Duration, opts ...Option) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = storageFailureThreshold
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = storageRecoveryTimeout
	}
	b := &Breaker{
		name:             "breaker",
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		isExpected:       func(error) bool { return true },
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Storage dependencies get a tight threshold and fast recovery: storage
// calls are cheap to retry and expensive to queue behind a dead backend.
const (
	storageFailureThreshold = 3
	storageRecoveryTimeout  = 30 * time.Second
)

// NewStorageBreaker returns a breaker tuned for a storage backend, named by
// the backend kind for observability.
func NewStorageBreaker(kind string, opts ...Option) *Breaker {
	opts = append([]Option{WithName("storage-" + kind)}, opts...)
	return New(storageFailureThreshold, storageRecoveryTimeout, opts...)
}

// Call runs op through the breaker. While open it returns ErrOpen without
// invoking op. Operation errors are returned unmodified.
func (b *Breaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalCalls++
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) > b.recoveryTimeout {
			b.state = StateHalfOpen
			b.probeInFlight = true
			return nil
		}
		return ErrOpen
	case StateHalfOpen:
		if b.probeInFlight {
			return ErrOpen
		}
		b.probeInFlight = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
	if err == nil {
		b.successfulCalls++
		if b.state == StateHalfOpen {
			b.state = StateClosed
			b.failureCount = 0
		}
		return
	}
	b.failedCalls++
	if !b.isExpected(err) {
		// Unexpected errors pass through uncounted.
		return
	}
	b.failureCount++
	b.lastFailureTime = b.now()
	if b.state == StateHalfOpen || b.failureCount >= b.failureThreshold {
		b.state = StateOpen
	}
}

// Reset forces the breaker back to closed, clearing the failure counter and
// last failure time. Operator escape hatch.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
	b.probeInFlight = false
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a point-in-time snapshot of breaker counters.
type Stats struct {
	Name            string
	State           State
	FailureCount    int
	TotalCalls      int64
	SuccessfulCalls int64
	FailedCalls     int64
	SuccessRate     float64
	LastFailureTime time.Time
}

// Stats returns a snapshot of the breaker's lifetime counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := Stats{
		Name:            b.name,
		State:           b.state,
		FailureCount:    b.failureCount,
		TotalCalls:      b.totalCalls,
		SuccessfulCalls: b.successfulCalls,
		FailedCalls:     b.failedCalls,
		LastFailureTime: b.lastFailureTime,
	}
	if b.totalCalls > 0 {
		stats.SuccessRate = float64(b.successfulCalls) / float64(b.totalCalls)
	}
	return stats
}
