package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected        *prometheus.CounterVec
	FallbackChecks  prometheus.Counter
	StoreErrors     prometheus.Counter
	CircuitOpenings prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligo_ratelimit_rejected_total",
			Help: "Requests rejected by the per-IP rate limiter, by endpoint class",
		}, []string{"class"}),
		FallbackChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_ratelimit_fallback_checks_total",
			Help: "Checks answered by the in-process fallback while the shared store is unavailable",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_ratelimit_store_errors_total",
			Help: "Failed checks against the shared rate limit store",
		}),
		CircuitOpenings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_ratelimit_circuit_opened_total",
			Help: "Times the rate limit store circuit opened",
		}),
	}
}

func (m *Metrics) IncrementRejected(class string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementFallback() {
	if m == nil {
		return
	}
	m.FallbackChecks.Inc()
}

func (m *Metrics) IncrementStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) IncrementCircuitOpened() {
	if m == nil {
		return
	}
	m.CircuitOpenings.Inc()
}
