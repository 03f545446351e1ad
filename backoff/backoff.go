// Package backoff provides retry delay strategies for failed job
// attempts. All strategies are safe for concurrent use (they are
// stateless).
package backoff

import (
	"math"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential raises Base to the power of the attempt number minus one.
// Delay = min(Base^(attempt-1) seconds, Max). With Base = 2 the first
// failure waits 2^0 = 1 second, the second 2 seconds, and so on.
type Exponential struct {
	Base float64
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base float64, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay}
}

// Delay returns Base^(attempt-1) seconds, capped at Max. The cap is
// applied before converting to a Duration so very large attempt counts
// cannot overflow.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := math.Pow(e.Base, float64(attempt-1)) * float64(time.Second)
	if e.Max > 0 && (d > float64(e.Max) || math.IsInf(d, 1)) {
		return e.Max
	}
	return time.Duration(d)
}
