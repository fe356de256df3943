package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache-level Prometheus metrics. All metrics carry a "cache" label whose
// value is the Group set in Config, allowing multiple cache instances to be
// distinguished in dashboards and alerts. A cache with an empty Group records
// nothing.
var (
	// HitsTotal counts requests answered synchronously from a present entry.
	HitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of requests served from a cached completion.",
		},
		[]string{"cache"},
	)

	// MissesTotal counts requests that started a new issuer call.
	MissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of requests that triggered an issuer call.",
		},
		[]string{"cache"},
	)

	// CoalescedTotal counts requests that joined an in-flight entry instead
	// of issuing their own call.
	CoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_coalesced_requests_total",
			Help: "Total number of requests coalesced onto an in-flight issuer call.",
		},
		[]string{"cache"},
	)

	// EvictionsTotal counts entries displaced by capacity pressure.
	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of entries evicted from the cache.",
		},
		[]string{"cache"},
	)

	// IssuerFailuresTotal counts rejected issuer calls (entry dropped, retry allowed).
	IssuerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_issuer_failures_total",
			Help: "Total number of issuer calls that ended in rejection.",
		},
		[]string{"cache"},
	)

	// AbandonedWaitersTotal counts waiters whose pending entry was evicted or
	// invalidated before resolution.
	AbandonedWaitersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_abandoned_waiters_total",
			Help: "Total number of waiters abandoned when a pending entry was removed.",
		},
		[]string{"cache"},
	)

	// StaleCompletionsTotal counts resolve/reject calls discarded because the
	// entry they were started for was already evicted or replaced.
	StaleCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_stale_completions_total",
			Help: "Total number of completions discarded as stale.",
		},
		[]string{"cache"},
	)
)

func init() {
	prometheus.MustRegister(
		HitsTotal,
		MissesTotal,
		CoalescedTotal,
		EvictionsTotal,
		IssuerFailuresTotal,
		AbandonedWaitersTotal,
		StaleCompletionsTotal,
	)
}

// inc increments cv under the cache's group label, or does nothing when the
// cache is not instrumented.
func (c *Cache[V]) inc(cv *prometheus.CounterVec) {
	if c.group != "" {
		cv.WithLabelValues(c.group).Inc()
	}
}

// entryCollector is a Prometheus Collector that lazily reports the current
// total and pending entry counts for a single cache group by querying the
// cache at scrape time. Lazy collection avoids a second set of counters that
// could drift from the store's actual contents.
type entryCollector struct {
	entriesDesc *prometheus.Desc
	pendingDesc *prometheus.Desc
	lenFunc     func() int
	pendingFunc func() int
}

func (c *entryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entriesDesc
	ch <- c.pendingDesc
}

func (c *entryCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(c.lenFunc()))
	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(c.pendingFunc()))
}

var (
	entryCollectorMu sync.Mutex
	entryCollectors  = make(map[string]*entryCollector)
	// collectorReg is the Prometheus registerer used for entry collectors.
	// Exposed as a variable so tests can substitute an isolated registry.
	collectorReg prometheus.Registerer = prometheus.DefaultRegisterer
)

// registerEntryCollector registers a per-group collector that lazily reads
// the cache size and pending count at scrape time. An existing collector for
// the same group is replaced, making it safe to recreate a cache for a group
// that was previously registered (e.g., in tests).
func registerEntryCollector(group string, lenFunc, pendingFunc func() int) *entryCollector {
	c := &entryCollector{
		entriesDesc: prometheus.NewDesc(
			"cache_entries",
			"Current number of entries in the cache.",
			nil,
			prometheus.Labels{"cache": group},
		),
		pendingDesc: prometheus.NewDesc(
			"cache_pending_entries",
			"Current number of in-flight entries in the cache.",
			nil,
			prometheus.Labels{"cache": group},
		),
		lenFunc:     lenFunc,
		pendingFunc: pendingFunc,
	}

	entryCollectorMu.Lock()
	defer entryCollectorMu.Unlock()

	if old, ok := entryCollectors[group]; ok {
		collectorReg.Unregister(old)
	}
	entryCollectors[group] = c
	_ = collectorReg.Register(c)
	return c
}

// unregisterEntryCollector removes the collector for the given group.
func unregisterEntryCollector(group string) {
	entryCollectorMu.Lock()
	defer entryCollectorMu.Unlock()

	if c, ok := entryCollectors[group]; ok {
		collectorReg.Unregister(c)
		delete(entryCollectors, group)
	}
}
