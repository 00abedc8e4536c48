package retry

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the wait before the next attempt. attempt is the 1-based
// number of the attempt that just failed.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same interval between every attempt
type Fixed time.Duration

func (f Fixed) Delay(_ int) time.Duration {
	return time.Duration(f)
}

// Exponential doubles the wait after every attempt up to Max, optionally
// randomising it by up to Jitter (0..1) of the computed delay.
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	// rand returns a value in [0, 1); nil uses math/rand/v2
	rand func() float64
}

func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(e.Base) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && raw > float64(e.Max) {
		raw = float64(e.Max)
	}
	backoff := time.Duration(math.MaxInt64)
	if raw < math.MaxInt64 {
		backoff = time.Duration(raw)
	}

	if e.Jitter <= 0 {
		return backoff
	}
	r := e.rand
	if r == nil {
		r = rand.Float64
	}
	jitter := math.Min(e.Jitter, 1)
	// spread over [backoff*(1-jitter), backoff]
	return time.Duration(float64(backoff) * (1 - jitter*r()))
}
