package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// refRetention bounds how long full results stay addressable. Runs are much
// shorter than this; the margin covers slow multi-turn conversations.
const refRetention = 15 * time.Minute

// ResultCache is the process-wide cross-run cache of tool values plus the
// ref-id store for full payloads. Mutating tools are never written here;
// the executor enforces that.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]resultEntry
	refs    map[string]refEntry

	now func() time.Time
}

type resultEntry struct {
	value   map[string]any
	expires time.Time
}

type refEntry struct {
	value  map[string]any
	stored time.Time
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{
		entries: make(map[string]resultEntry),
		refs:    make(map[string]refEntry),
		now:     time.Now,
	}
}

// Get returns the cached value for a canonical key if present and fresh.
func (c *ResultCache) Get(key string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Put stores a value under the canonical key with the family's TTL.
// A non-positive TTL stores nothing.
func (c *ResultCache) Put(key string, value map[string]any, ttl time.Duration) {
	if ttl <= 0 || key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resultEntry{value: value, expires: c.now().Add(ttl)}
	c.pruneLocked()
}

// StoreRef commits a full tool value to the ref store and returns its opaque
// handle. The handle stays resolvable for the remainder of the run.
func (c *ResultCache) StoreRef(value map[string]any) string {
	id := uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[id] = refEntry{value: value, stored: c.now()}
	return id
}

// ResolveRef returns the full value for a ref id.
func (c *ResultCache) ResolveRef(id string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.refs[id]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.stored) > refRetention {
		delete(c.refs, id)
		return nil, false
	}
	return e.value, true
}

// pruneLocked drops expired cache entries and aged-out refs.
func (c *ResultCache) pruneLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	for id, e := range c.refs {
		if now.Sub(e.stored) > refRetention {
			delete(c.refs, id)
		}
	}
}

// Size returns the number of live cache entries, for diagnostics.
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetNowFunc overrides the clock, for tests.
func (c *ResultCache) SetNowFunc(now func() time.Time) {
	c.now = now
}
