package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IntakeMetrics holds all Prometheus metrics for the intake service.
type IntakeMetrics struct {
	EventsTotal        *prometheus.CounterVec
	DispatchInFlight   prometheus.Gauge
	ProcessingFailures prometheus.Counter
	RiskTransitions    *prometheus.CounterVec
	ConfigCacheHits    prometheus.Counter
	ConfigCacheMisses  prometheus.Counter
}

// NewIntakeMetrics initializes and registers the Prometheus metrics.
func NewIntakeMetrics() *IntakeMetrics {
	return &IntakeMetrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carewatch",
			Subsystem: "intake",
			Name:      "events_total",
			Help:      "Total number of inbound events by outcome.",
		}, []string{"outcome"}), // outcome: accepted, duplicate, replay, claim_lost, verify_failed, challenge, ignored
		DispatchInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "carewatch",
			Subsystem: "intake",
			Name:      "dispatch_in_flight",
			Help:      "Number of detached processing tasks currently holding a dispatch slot.",
		}),
		ProcessingFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "carewatch",
			Subsystem: "intake",
			Name:      "processing_failures_total",
			Help:      "Total number of detached processing tasks that ended in an error.",
		}),
		RiskTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carewatch",
			Subsystem: "risk",
			Name:      "transitions_total",
			Help:      "Total number of risk level transitions by new level.",
		}, []string{"level"}),
		ConfigCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "carewatch",
			Subsystem: "tenant",
			Name:      "config_cache_hits_total",
			Help:      "Total number of tenant config cache hits.",
		}),
		ConfigCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "carewatch",
			Subsystem: "tenant",
			Name:      "config_cache_misses_total",
			Help:      "Total number of tenant config cache misses.",
		}),
	}
}

// Event increments the events counter for the given outcome. Safe on a nil
// receiver so handlers can run without metrics in tests.
func (m *IntakeMetrics) Event(outcome string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(outcome).Inc()
}
