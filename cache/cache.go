// Package cache implements a fixed-capacity response cache for language-model
// completion requests with in-flight request coalescing: when several callers
// ask for the same completion while the first request is still running, only
// one call reaches the issuer and every caller is notified on resolution.
package cache

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/completioncache/lru"
)

// DefaultCapacity is used when Config.Capacity is zero.
const DefaultCapacity = 10000

// Callback receives a resolved completion value. Callbacks are best-effort:
// a panicking callback is recovered and logged, and remaining waiters are
// still notified.
type Callback[V any] func(value V)

// Issuer performs the actual completion request out of band and reports the
// outcome through exactly one of resolve or reject, at most once in total.
// The cache never holds its lock across an Issuer call.
type Issuer[V any] func(key Key, resolve func(value V), reject func(err error))

// EntryState is the lifecycle state of a cache entry.
type EntryState int

const (
	// StatePending means the issuer has been called and callers are waiting.
	StatePending EntryState = iota
	// StatePresent means the resolved value is cached.
	StatePresent
)

// Config holds the configuration for a Cache.
type Config struct {
	// Capacity is the maximum number of entries, pending and present
	// combined. Zero selects DefaultCapacity; negative is an error.
	Capacity int

	// Group is an optional label value used to namespace Prometheus metrics
	// (cache_hits_total, cache_misses_total, etc.). When non-empty the cache
	// records metrics under that label and registers lazy entry gauges.
	Group string

	// Logger receives issuer failures and discarded-completion reports.
	// If nil, nothing is logged.
	Logger *zerolog.Logger
}

// entry is the slot for one key: pending with an ordered waiter list, or
// present with the resolved value. A pending entry only ever becomes present
// or is removed; it never returns to pending.
type entry[V any] struct {
	gen      uint64
	resolved bool
	value    V
	waiters  []Callback[V]
}

// Cache coalesces and caches completion requests. It is safe for concurrent
// use; the internal mutex is held only for store and entry mutation, never
// while the issuer or caller callbacks run.
type Cache[V any] struct {
	mu     sync.Mutex
	store  *lru.Store[string, *entry[V]]
	gen    uint64
	group  string
	logger zerolog.Logger
}

// New creates a Cache with the given configuration.
func New[V any](cfg Config) (*Cache[V], error) {
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("cache: capacity must not be negative, got %d", cfg.Capacity)
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &Cache[V]{group: cfg.Group, logger: logger}
	store, err := lru.New[string, *entry[V]](cfg.Capacity, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.store = store

	if c.group != "" {
		registerEntryCollector(c.group, c.Len, c.PendingCount)
	}
	return c, nil
}

// Request asks for the completion identified by key.
//
// If the value is already cached the callback fires synchronously before
// Request returns. If a request for the same key is in flight the callback
// joins its waiter list and no new issuer call is made; joining mutates the
// pending entry in place and can never evict another key. Otherwise a pending
// entry is stored (a real LRU insert, which may evict the least recently used
// key) and issue is called exactly once.
func (c *Cache[V]) Request(key Key, issue Issuer[V], cb Callback[V]) {
	k := key.canonical()

	c.mu.Lock()
	if e, ok := c.store.Get(k); ok {
		if e.resolved {
			value := e.value
			c.mu.Unlock()
			c.inc(HitsTotal)
			c.invoke(cb, value)
			return
		}
		e.waiters = append(e.waiters, cb)
		c.mu.Unlock()
		c.inc(CoalescedTotal)
		return
	}

	c.gen++
	gen := c.gen
	c.store.Put(k, &entry[V]{gen: gen, waiters: []Callback[V]{cb}})
	c.mu.Unlock()
	c.inc(MissesTotal)

	issue(key,
		func(value V) { c.resolve(k, gen, value) },
		func(err error) { c.reject(key, k, gen, err) },
	)
}

// resolve transitions a pending entry to present and notifies its waiters in
// registration order. A completion whose generation no longer matches the
// stored entry belongs to an evicted or replaced flight and is discarded.
func (c *Cache[V]) resolve(k string, gen uint64, value V) {
	c.mu.Lock()
	e, ok := c.store.Peek(k)
	if !ok || e.gen != gen || e.resolved {
		c.mu.Unlock()
		c.discardStale(k)
		return
	}
	waiters := e.waiters
	e.waiters = nil
	e.resolved = true
	e.value = value
	c.mu.Unlock()

	for _, cb := range waiters {
		c.invoke(cb, value)
	}
}

// reject removes a pending entry so a later Request can retry from scratch.
// Waiters are not notified; failure reporting is the issuer's side channel,
// and this logger call is it.
func (c *Cache[V]) reject(key Key, k string, gen uint64, err error) {
	c.mu.Lock()
	e, ok := c.store.Peek(k)
	if !ok || e.gen != gen || e.resolved {
		c.mu.Unlock()
		c.discardStale(k)
		return
	}
	waiters := len(e.waiters)
	e.waiters = nil
	c.store.Remove(k)
	c.mu.Unlock()

	c.inc(IssuerFailuresTotal)
	c.logger.Error().
		Err(err).
		Str("key", fingerprintOf(k)).
		Int("waiters", waiters).
		Msg("Completion request failed, entry dropped for retry")
}

// Invalidate removes the entry for key, if any, and reports whether one was
// present. Invalidating a pending entry abandons its waiters, the same
// collateral as LRU eviction of a pending entry.
func (c *Cache[V]) Invalidate(key Key) bool {
	k := key.canonical()

	c.mu.Lock()
	e, ok := c.store.Peek(k)
	if ok {
		c.noteAbandoned(e)
		c.store.Remove(k)
	}
	c.mu.Unlock()
	return ok
}

// Len returns the number of entries currently held, pending and present.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Cap returns the configured capacity.
func (c *Cache[V]) Cap() int {
	return c.store.Cap()
}

// PendingCount returns the number of in-flight entries.
func (c *Cache[V]) PendingCount() int {
	return c.Count(func(s EntryState) bool { return s == StatePending })
}

// PresentCount returns the number of resolved entries.
func (c *Cache[V]) PresentCount() int {
	return c.Count(func(s EntryState) bool { return s == StatePresent })
}

// Count returns the number of entries whose state satisfies pred. It is a
// diagnostic query: it never mutates the cache or its recency order.
func (c *Cache[V]) Count(pred func(state EntryState) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Count(func(_ string, e *entry[V]) bool {
		if e.resolved {
			return pred(StatePresent)
		}
		return pred(StatePending)
	})
}

// Close unregisters the cache's metric collectors. The cache itself holds no
// other resources.
func (c *Cache[V]) Close() error {
	if c.group != "" {
		unregisterEntryCollector(c.group)
	}
	return nil
}

// onEvict runs with c.mu held, from inside a store Put.
func (c *Cache[V]) onEvict(_ string, e *entry[V]) {
	c.inc(EvictionsTotal)
	c.noteAbandoned(e)
}

// noteAbandoned accounts for waiters that will never be notified because
// their pending entry is leaving the store unresolved. Called with c.mu held.
func (c *Cache[V]) noteAbandoned(e *entry[V]) {
	if e.resolved || len(e.waiters) == 0 {
		return
	}
	if c.group != "" {
		AbandonedWaitersTotal.WithLabelValues(c.group).Add(float64(len(e.waiters)))
	}
	c.logger.Debug().
		Int("waiters", len(e.waiters)).
		Msg("Pending entry removed before resolution, waiters abandoned")
	e.waiters = nil
}

func (c *Cache[V]) discardStale(k string) {
	c.inc(StaleCompletionsTotal)
	c.logger.Debug().
		Str("key", fingerprintOf(k)).
		Msg("Discarding completion for evicted or replaced entry")
}

// invoke runs a caller callback, containing panics so one misbehaving waiter
// cannot starve the rest.
func (c *Cache[V]) invoke(cb Callback[V], value V) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().
				Interface("panic", r).
				Msg("Completion callback panicked")
		}
	}()
	cb(value)
}
