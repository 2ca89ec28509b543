package webhook

import (
	"math/rand"
	"time"
)

// BackoffStrategy calculates the delay before the next attempt of a failed
// delivery chain. Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	// NextDelay returns the delay after the given attempt failed.
	// Attempt is 1-indexed: attempt 1 is the first delivery attempt.
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the base delay per attempt and adds uniform
// jitter of up to half the base. Jitter spreads retries out when many
// webhooks fail at once, e.g. after a shared endpoint outage.
type ExponentialBackoff struct {
	// InitialDelay is the base delay after the first failed attempt.
	// Defaults to 1s.
	InitialDelay time.Duration
	// MaxDelay caps the computed delay. Defaults to 1h.
	MaxDelay time.Duration
}

// NextDelay implements BackoffStrategy:
//
//	base  = InitialDelay * 2^(attempt-1)
//	delay = min(base + uniform(0, base/2), MaxDelay)
func (e ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	max := e.MaxDelay
	if max <= 0 {
		max = time.Hour
	}

	// Shift overflows past ~2^62ns; anything that far out is capped anyway.
	if attempt > 40 {
		return max
	}

	base := initial << (attempt - 1)
	if base <= 0 || base > max {
		return max
	}

	delay := base + time.Duration(rand.Int63n(int64(base/2)+1))
	if delay > max {
		delay = max
	}
	return delay
}

// FixedBackoff returns a constant delay regardless of attempt number.
// Useful for tests that need deterministic retry timing.
type FixedBackoff struct {
	Delay time.Duration
}

// NextDelay implements BackoffStrategy.
func (f FixedBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Delay
}

// DefaultBackoffStrategy returns the production retry schedule: 1s base,
// doubling per attempt, jittered, capped at one hour.
func DefaultBackoffStrategy() BackoffStrategy {
	return ExponentialBackoff{
		InitialDelay: time.Second,
		MaxDelay:     time.Hour,
	}
}
