package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by a Workflow.
type Metrics struct {
	refreshes     prometheus.Counter
	skipped       prometheus.Counter
	completions   *prometheus.CounterVec
	dropped       prometheus.Counter
	inFlight      prometheus.Gauge
	fetchDuration prometheus.Histogram
}

// NewMetrics registers the workflow collectors on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "started_total",
			Help:      "Total number of refreshes that started a fetch",
		}),

		skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "skipped_total",
			Help:      "Total number of refreshes ignored because a fetch was in flight",
		}),

		completions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "completed_total",
			Help:      "Total number of fetches that completed, by result",
		}, []string{"result"}),

		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "dropped_total",
			Help:      "Total number of fetch results dropped because the workflow was closed",
		}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "in_flight",
			Help:      "Number of fetches currently in flight",
		}),

		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "fetch_duration_seconds",
			Help:      "Time from refresh to fetch completion in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// a nil *Metrics records nothing

func (m *Metrics) started(inFlight int) {
	if m == nil {
		return
	}
	m.refreshes.Inc()
	m.inFlight.Set(float64(inFlight))
}

func (m *Metrics) skip() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Metrics) completed(err error, inFlight int, took time.Duration) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	m.completions.WithLabelValues(result).Inc()
	m.inFlight.Set(float64(inFlight))
	m.fetchDuration.Observe(took.Seconds())
}

func (m *Metrics) drop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) closed() {
	if m == nil {
		return
	}
	m.inFlight.Set(0)
}
