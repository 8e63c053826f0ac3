package push

import (
	"math/rand/v2"
	"time"
)

// Backoff is a capped exponential reconnect policy.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps every delay.
	Max time.Duration
	// Multiplier grows the delay per attempt. Values below 1 are treated as 2.
	Multiplier float64
	// Jitter randomizes each delay by up to this fraction (0 disables).
	Jitter float64
}

// DefaultBackoff is 500ms doubling up to 30s with 20% jitter.
var DefaultBackoff = Backoff{
	Initial:    500 * time.Millisecond,
	Max:        30 * time.Second,
	Multiplier: 2,
	Jitter:     0.2,
}

// Next returns the delay before retry number attempt (0-based), without
// jitter. It is the deterministic half of Delay.
func (b Backoff) Next(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = DefaultBackoff.Initial
	}
	max := b.ceiling()
	mult := b.Multiplier
	if mult < 1 {
		mult = 2
	}

	d := float64(initial)
	for i := 0; i < attempt; i++ {
		d *= mult
		if d >= float64(max) {
			return max
		}
	}
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}

// ceiling is Max, or DefaultBackoff.Max when unset.
func (b Backoff) ceiling() time.Duration {
	if b.Max <= 0 {
		return DefaultBackoff.Max
	}
	return b.Max
}

// Delay returns Next(attempt) randomized by Jitter and still capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Next(attempt)
	if b.Jitter <= 0 {
		return d
	}
	spread := float64(d) * b.Jitter
	j := time.Duration((rand.Float64()*2 - 1) * spread)
	d += j
	if d < 0 {
		d = 0
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
