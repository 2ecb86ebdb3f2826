package assoc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters shared by every cache and map
// configured with it. Series are labelled by cache name and backend.
type Metrics struct {
	hits, misses,
	evictions, reclaimed *prometheus.CounterVec
}

// observer is a [Metrics] bound to one cache.
// A nil observer discards everything.
type observer struct {
	hits, misses,
	evictions, reclaimed prometheus.Counter
}

const metricsNamespace = "assoc"

var metricLabels = []string{"cache", "backend"}

// NewMetrics creates the counters and registers them with reg.
// A nil reg creates unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hits_total",
			Help:      "Total number of lookups that found a value.",
		}, metricLabels),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "misses_total",
			Help:      "Total number of lookups that found no value.",
		}, metricLabels),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evictions_total",
			Help:      "Total number of entries evicted by a capacity policy.",
		}, metricLabels),
		reclaimed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reclaimed_total",
			Help:      "Total number of entries removed because their key or value was collected.",
		}, metricLabels),
	}
}

func (m *Metrics) observe(name string, backend Backend) *observer {
	if m == nil {
		return nil
	}
	labels := []string{name, backend.String()}
	return &observer{
		hits:      m.hits.WithLabelValues(labels...),
		misses:    m.misses.WithLabelValues(labels...),
		evictions: m.evictions.WithLabelValues(labels...),
		reclaimed: m.reclaimed.WithLabelValues(labels...),
	}
}

func (o *observer) lookup(found bool) {
	if o == nil {
		return
	}
	if found {
		o.hits.Inc()
	} else {
		o.misses.Inc()
	}
}

func (o *observer) evicted() {
	if o != nil {
		o.evictions.Inc()
	}
}

func (o *observer) reclaim() {
	if o != nil {
		o.reclaimed.Inc()
	}
}
