package cache

import (
	"context"
	"sync"
)

// DedupValue is what the dedup map retains for a completed call: the full
// tool value plus the ref id minted when it was stored.
type DedupValue struct {
	Value map[string]any
	RefID string
}

type dedupEntry struct {
	done chan struct{}
	val  DedupValue
	ok   bool
}

// RunDedup deduplicates identical (tool, canonical args) calls within one
// run. The first occurrence executes; identical concurrent or subsequent
// calls wait for and reuse its result. Discarded when the run ends.
type RunDedup struct {
	mu      sync.Mutex
	entries map[string]*dedupEntry
}

// NewRunDedup creates an empty per-run dedup map.
func NewRunDedup() *RunDedup {
	return &RunDedup{entries: make(map[string]*dedupEntry)}
}

// Begin claims the key. leader=true means the caller must execute the call
// and then invoke Complete or Abandon. leader=false means another caller owns
// the key; use Wait to obtain its result.
func (d *RunDedup) Begin(key string) (leader bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[key]; ok {
		return false
	}
	d.entries[key] = &dedupEntry{done: make(chan struct{})}
	return true
}

// Complete publishes the leader's successful result for the key.
func (d *RunDedup) Complete(key string, val DedupValue) {
	d.mu.Lock()
	e := d.entries[key]
	if e == nil {
		d.mu.Unlock()
		return
	}
	e.val = val
	e.ok = true
	d.mu.Unlock()
	close(e.done)
}

// Abandon releases the key after a failed execution so a later identical
// call may try again. Waiters see ok=false.
func (d *RunDedup) Abandon(key string) {
	d.mu.Lock()
	e := d.entries[key]
	delete(d.entries, key)
	d.mu.Unlock()
	if e != nil {
		close(e.done)
	}
}

// Wait blocks until the leader for key finishes. ok is false when the leader
// failed (the result was abandoned) or the key is unknown.
func (d *RunDedup) Wait(ctx context.Context, key string) (DedupValue, bool) {
	d.mu.Lock()
	e := d.entries[key]
	d.mu.Unlock()
	if e == nil {
		return DedupValue{}, false
	}
	select {
	case <-e.done:
		return e.val, e.ok
	case <-ctx.Done():
		return DedupValue{}, false
	}
}

// Lookup returns the completed result for key without blocking.
func (d *RunDedup) Lookup(key string) (DedupValue, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.entries[key]
	if e == nil || !e.ok {
		return DedupValue{}, false
	}
	select {
	case <-e.done:
		return e.val, true
	default:
		return DedupValue{}, false
	}
}

// Size returns the number of claimed keys, for diagnostics.
func (d *RunDedup) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
