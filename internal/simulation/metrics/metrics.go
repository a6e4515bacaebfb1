package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the simulation module.
type Metrics struct {
	SessionsCreated   prometheus.Counter
	HighEligibility   prometheus.Counter
	SessionsAbandoned prometheus.Counter
	TokenRejected     *prometheus.CounterVec
	ProductScore      *prometheus.HistogramVec
	SessionsPurged    *prometheus.CounterVec
}

// New creates a new Metrics instance with all simulation metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_simulation_sessions_created_total",
			Help: "Total temporary sessions created by the simulator",
		}),
		HighEligibility: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_simulation_high_eligibility_total",
			Help: "Sessions with at least one product scoring in the high band",
		}),
		SessionsAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_simulation_sessions_abandoned_total",
			Help: "Sessions explicitly abandoned by the visitor",
		}),
		TokenRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligo_simulation_token_rejected_total",
			Help: "Session access checks that failed, by reason",
		}, []string{"reason"}), // reason: "token", "not_found", "expired", "mismatch"
		ProductScore: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eligo_simulation_product_score",
			Help:    "Distribution of eligibility scores by product",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"product"}),
		SessionsPurged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligo_simulation_sessions_purged_total",
			Help: "Sessions removed by housekeeping, by kind",
		}, []string{"kind"}), // kind: "expired", "migrated"
	}
}

func (m *Metrics) IncrementSessionsCreated() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}

func (m *Metrics) IncrementHighEligibility() {
	if m != nil {
		m.HighEligibility.Inc()
	}
}

func (m *Metrics) IncrementSessionsAbandoned() {
	if m != nil {
		m.SessionsAbandoned.Inc()
	}
}

// IncrementTokenRejected records a failed session access check.
func (m *Metrics) IncrementTokenRejected(reason string) {
	if m != nil {
		m.TokenRejected.WithLabelValues(reason).Inc()
	}
}

// ObserveScore records one product score.
func (m *Metrics) ObserveScore(product string, score int) {
	if m != nil {
		m.ProductScore.WithLabelValues(product).Observe(float64(score))
	}
}

func (m *Metrics) AddSessionsPurged(kind string, n int) {
	if m != nil && n > 0 {
		m.SessionsPurged.WithLabelValues(kind).Add(float64(n))
	}
}
