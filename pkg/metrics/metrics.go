// Package metrics exposes the indexer's prometheus collectors.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for applied events.
const (
	OutcomeApplied   = "applied"
	OutcomeSkipped   = "skipped"
	OutcomeDuplicate = "duplicate"
	OutcomeUnwatched = "unwatched"
	OutcomeFailed    = "failed"
)

type indexerMetrics struct {
	events        *prometheus.CounterVec
	handler       *prometheus.HistogramVec
	commit        prometheus.Histogram
	changes       prometheus.Counter
	viewCalls     *prometheus.CounterVec
	manifests     *prometheus.CounterVec
	subscriptions *prometheus.CounterVec
	head          prometheus.Gauge
}

var (
	indexerOnce     sync.Once
	indexerRegistry *indexerMetrics
)

// Indexer returns the lazily registered indexer collectors.
func Indexer() *indexerMetrics {
	indexerOnce.Do(func() {
		indexerRegistry = &indexerMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "graph",
				Subsystem: "projection",
				Name:      "events_total",
				Help:      "Events seen by the projection engine by contract kind, event name and outcome.",
			}, []string{"kind", "event", "outcome"}),
			handler: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "graph",
				Subsystem: "projection",
				Name:      "handler_duration_seconds",
				Help:      "Time spent applying one event, excluding the commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind", "event"}),
			commit: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "graph",
				Subsystem: "store",
				Name:      "commit_duration_seconds",
				Help:      "Latency of atomic per-event commits.",
				Buckets:   prometheus.DefBuckets,
			}),
			changes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "graph",
				Subsystem: "store",
				Name:      "changes_total",
				Help:      "Entity writes committed to the store.",
			}),
			viewCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "graph",
				Subsystem: "chain",
				Name:      "view_calls_total",
				Help:      "Contract view calls by method and outcome.",
			}, []string{"method", "outcome"}),
			manifests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "graph",
				Subsystem: "manifest",
				Name:      "fetches_total",
				Help:      "Distribution manifest fetches by scheme and outcome.",
			}, []string{"scheme", "outcome"}),
			subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "graph",
				Subsystem: "projection",
				Name:      "subscriptions_total",
				Help:      "Addresses added to the watch registry by contract kind.",
			}, []string{"kind"}),
			head: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "graph",
				Subsystem: "projection",
				Name:      "head_block",
				Help:      "Block number of the last applied event.",
			}),
		}
		prometheus.MustRegister(
			indexerRegistry.events,
			indexerRegistry.handler,
			indexerRegistry.commit,
			indexerRegistry.changes,
			indexerRegistry.viewCalls,
			indexerRegistry.manifests,
			indexerRegistry.subscriptions,
			indexerRegistry.head,
		)
	})
	return indexerRegistry
}

// ObserveEvent records the outcome and handler latency of one event.
func (m *indexerMetrics) ObserveEvent(kind, name, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, name, outcome).Inc()
	if outcome == OutcomeApplied || outcome == OutcomeSkipped {
		m.handler.WithLabelValues(kind, name).Observe(took.Seconds())
	}
}

// ObserveCommit records one commit of n changes.
func (m *indexerMetrics) ObserveCommit(n int, took time.Duration) {
	if m == nil {
		return
	}
	m.commit.Observe(took.Seconds())
	m.changes.Add(float64(n))
}

func (m *indexerMetrics) ObserveViewCall(method, outcome string) {
	if m == nil {
		return
	}
	m.viewCalls.WithLabelValues(method, outcome).Inc()
}

func (m *indexerMetrics) ObserveManifest(scheme, outcome string) {
	if m == nil {
		return
	}
	m.manifests.WithLabelValues(scheme, outcome).Inc()
}

func (m *indexerMetrics) ObserveSubscription(kind string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(kind).Inc()
}

func (m *indexerMetrics) SetHead(block uint64) {
	if m == nil {
		return
	}
	m.head.Set(float64(block))
}
