// Package infra holds process-wide runtime state shared across agent runs.
package infra

import (
	"sync"
	"time"
)

// Breaker defaults.
const (
	DefaultOpenAfterFailures = 3
	DefaultCooldown          = 3 * time.Second
)

// BreakerConfig configures the per-tool circuit breakers.
type BreakerConfig struct {
	// OpenAfterFailures is the consecutive-failure count that opens a breaker.
	OpenAfterFailures int

	// Cooldown is how long a breaker stays open after the last failure.
	Cooldown time.Duration

	// OnOpen is invoked when a tool's breaker transitions to open.
	OnOpen func(tool string)
}

// breakerState is the state for one tool.
type breakerState struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openNotified bool
}

// BreakerSet tracks circuit state per tool name. It outlives runs and is safe
// for concurrent use.
type BreakerSet struct {
	cfg BreakerConfig

	mu    sync.RWMutex
	tools map[string]*breakerState

	now func() time.Time
}

// NewBreakerSet creates a breaker set with the given config, applying
// defaults for zero values.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	if cfg.OpenAfterFailures <= 0 {
		cfg.OpenAfterFailures = DefaultOpenAfterFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &BreakerSet{
		cfg:   cfg,
		tools: make(map[string]*breakerState),
		now:   time.Now,
	}
}

func (b *BreakerSet) state(tool string) *breakerState {
	b.mu.RLock()
	st, ok := b.tools[tool]
	b.mu.RUnlock()
	if ok {
		return st
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok = b.tools[tool]; ok {
		return st
	}
	st = &breakerState{}
	b.tools[tool] = st
	return st
}

// Allow reports whether an attempt against the tool may proceed. When the
// cooldown has elapsed since the last failure the breaker auto-resets.
func (b *BreakerSet) Allow(tool string) bool {
	st := b.state(tool)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.failures < b.cfg.OpenAfterFailures {
		return true
	}
	if b.now().Sub(st.lastFailure) >= b.cfg.Cooldown {
		st.failures = 0
		st.openNotified = false
		return true
	}
	return false
}

// RecordSuccess resets the tool's failure count.
func (b *BreakerSet) RecordSuccess(tool string) {
	st := b.state(tool)
	st.mu.Lock()
	st.failures = 0
	st.openNotified = false
	st.mu.Unlock()
}

// RecordFailure increments the tool's failure count. Callers are expected to
// skip kinds that do not count toward the breaker (invalid arguments,
// breaker short-circuits).
func (b *BreakerSet) RecordFailure(tool string) {
	st := b.state(tool)
	st.mu.Lock()
	st.failures++
	st.lastFailure = b.now()
	opened := st.failures >= b.cfg.OpenAfterFailures && !st.openNotified
	if opened {
		st.openNotified = true
	}
	st.mu.Unlock()

	if opened && b.cfg.OnOpen != nil {
		b.cfg.OnOpen(tool)
	}
}

// BreakerStats is a point-in-time view of one tool's breaker.
type BreakerStats struct {
	Tool        string
	Failures    int
	LastFailure time.Time
	Open        bool
}

// Stats returns the current state of every tracked tool.
func (b *BreakerSet) Stats() []BreakerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]BreakerStats, 0, len(b.tools))
	for tool, st := range b.tools {
		st.mu.Lock()
		open := st.failures >= b.cfg.OpenAfterFailures &&
			b.now().Sub(st.lastFailure) < b.cfg.Cooldown
		out = append(out, BreakerStats{
			Tool:        tool,
			Failures:    st.failures,
			LastFailure: st.lastFailure,
			Open:        open,
		})
		st.mu.Unlock()
	}
	return out
}

// Reset clears all breaker state.
func (b *BreakerSet) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tools = make(map[string]*breakerState)
}

// SetNowFunc overrides the clock, for tests.
func (b *BreakerSet) SetNowFunc(now func() time.Time) {
	b.now = now
}
