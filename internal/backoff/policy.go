// Package backoff computes retry delays for tool execution.
package backoff

import "time"

// jitterStep is the additive per-attempt jitter applied on top of the
// exponential base. Deterministic so retry timing is testable.
const jitterStep = 100 * time.Millisecond

// Policy defines the parameters for exponential backoff.
type Policy struct {
	// Base is the initial backoff duration.
	Base time.Duration

	// Max caps the computed delay. Zero means DefaultMax.
	Max time.Duration
}

// DefaultMax bounds retry sleeps so a tool-call budget is never dominated by
// waiting.
const DefaultMax = 5 * time.Second

// Delay returns the sleep before retrying after a failed attempt.
// Attempt numbers start at 0 for the first failure:
//
//	delay = base · 2^attempt + (attempt+1) · 100ms, clamped to Max.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	max := p.Max
	if max <= 0 {
		max = DefaultMax
	}

	base := p.Base
	// Shift with overflow guard; past 30 doublings the cap always wins.
	if attempt < 30 {
		base = p.Base << uint(attempt)
	} else {
		base = max
	}

	d := base + time.Duration(attempt+1)*jitterStep
	if d > max || d < 0 {
		return max
	}
	return d
}
