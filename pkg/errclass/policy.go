package errclass

import (
	"math"
	"time"
)

// Strategy holds the retry parameters associated with one classification.
// Values are fixed at process start and never mutated.
type Strategy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	ShouldRetry bool
}

// policies is the fixed classification -> strategy table. Integrity and
// authentication failures are never retried: repeating the call cannot
// change their outcome.
var policies = map[Classification]Strategy{
	ConnectionLost:      {MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 2.0, ShouldRetry: true},
	ConnectionTimeout:   {MaxRetries: 2, BaseDelay: 5 * time.Second, MaxDelay: 60 * time.Second, Multiplier: 2.0, ShouldRetry: true},
	ResourceExhausted:   {MaxRetries: 1, BaseDelay: 10 * time.Second, MaxDelay: 120 * time.Second, Multiplier: 3.0, ShouldRetry: true},
	DataIntegrity:       {MaxRetries: 0, BaseDelay: 0, MaxDelay: 0, Multiplier: 1.0, ShouldRetry: false},
	AuthenticationError: {MaxRetries: 0, BaseDelay: 0, MaxDelay: 0, Multiplier: 1.0, ShouldRetry: false},
	RateLimit:           {MaxRetries: 2, BaseDelay: 30 * time.Second, MaxDelay: 300 * time.Second, Multiplier: 2.0, ShouldRetry: true},
	TemporaryError:      {MaxRetries: 3, BaseDelay: 5 * time.Second, MaxDelay: 60 * time.Second, Multiplier: 2.0, ShouldRetry: true},
	NetworkError:        {MaxRetries: 2, BaseDelay: 3 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 2.0, ShouldRetry: true},
	UnknownError:        {MaxRetries: 1, BaseDelay: 1 * time.Second, MaxDelay: 10 * time.Second, Multiplier: 2.0, ShouldRetry: true},
}

// PolicyFor returns the retry strategy for a classification, falling back to
// the UnknownError entry for unrecognized keys.
func PolicyFor(class Classification) Strategy {
	if strategy, ok := policies[class]; ok {
		return strategy
	}
	return policies[UnknownError]
}

// ShouldRetry classifies err and returns whether it is retryable along with
// the strategy governing the retries.
func ShouldRetry(err error) (bool, Strategy) {
	strategy := PolicyFor(Classify(err))
	return strategy.ShouldRetry, strategy
}

// Delay computes the backoff before retry attempt n (0-indexed), capped at
// MaxDelay. Callers own the sleep loop and the attempt counter.
func (s Strategy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(s.BaseDelay) * math.Pow(s.Multiplier, float64(attempt))
	return time.Duration(math.Min(delay, float64(s.MaxDelay)))
}
