package feed

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for cycle metrics.
const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeStale   = "stale"
	outcomeNoop    = "noop"
	outcomeDone    = "exhausted"
	outcomeRefused = "refused"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	// CyclesTotal counts finished cycles by stream and outcome.
	CyclesTotal *prometheus.CounterVec
	// CycleDuration measures cycle wall time by stream.
	CycleDuration *prometheus.HistogramVec
	// ItemsTotal counts delivered items by stream.
	ItemsTotal *prometheus.CounterVec
	// ItemFailures counts per-item fetch failures dropped from a batch.
	ItemFailures *prometheus.CounterVec
	// LiveBuffered is the live buffer's full history size.
	LiveBuffered prometheus.Gauge
	// EventsDropped counts events not delivered to a slow subscriber.
	EventsDropped prometheus.Counter
}

// NewMetrics creates collectors registered with reg. A nil reg leaves them
// unregistered, which is what tests and multi-engine setups want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hnlive",
				Name:      "cycles_total",
				Help:      "Fetch cycles by stream and outcome",
			},
			[]string{"stream", "outcome"},
		),
		CycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hnlive",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of fetch cycles in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stream"},
		),
		ItemsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hnlive",
				Name:      "items_total",
				Help:      "Items delivered by stream",
			},
			[]string{"stream"},
		),
		ItemFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hnlive",
				Name:      "item_failures_total",
				Help:      "Item fetches that failed and were dropped from their batch",
			},
			[]string{"stream"},
		),
		LiveBuffered: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "hnlive",
				Name:      "live_buffered_items",
				Help:      "Items held in the live update history",
			},
		),
		EventsDropped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hnlive",
				Name:      "events_dropped_total",
				Help:      "Events dropped because a subscriber was full",
			},
		),
	}
}

// recordCycle records a finished cycle.
func (m *Metrics) recordCycle(stream Stream, outcome string, started time.Time) {
	m.CyclesTotal.WithLabelValues(string(stream), outcome).Inc()
	m.CycleDuration.WithLabelValues(string(stream)).Observe(time.Since(started).Seconds())
}

// recordRefused records a call rejected by the in-flight flag.
func (m *Metrics) recordRefused(stream Stream) {
	m.CyclesTotal.WithLabelValues(string(stream), outcomeRefused).Inc()
}

// recordBatch records delivered items and dropped failures.
func (m *Metrics) recordBatch(stream Stream, delivered, failed int) {
	if delivered > 0 {
		m.ItemsTotal.WithLabelValues(string(stream)).Add(float64(delivered))
	}
	if failed > 0 {
		m.ItemFailures.WithLabelValues(string(stream)).Add(float64(failed))
	}
}
