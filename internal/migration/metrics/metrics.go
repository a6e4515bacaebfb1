package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for account migrations.
type Metrics struct {
	Migrations        *prometheus.CounterVec
	Failures          *prometheus.CounterVec
	Duration          prometheus.Histogram
	RecordsMigrated   prometheus.Counter
	ProductsSkipped   *prometheus.CounterVec
	Compensations     prometheus.Counter
	MarkRetries       prometheus.Counter
	MarkAbandoned     prometheus.Counter
	ReservationsFixed *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Migrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligo_migration_total",
			Help: "Migration requests by outcome",
		}, []string{"outcome"}), // outcome: "migrated", "already_migrated", "failed"
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligo_migration_failures_total",
			Help: "Failed migrations by failure kind",
		}, []string{"kind"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "eligo_migration_duration_seconds",
			Help:    "End-to-end migration latency",
			Buckets: prometheus.DefBuckets,
		}),
		RecordsMigrated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_migration_records_total",
			Help: "Eligibility records written by migrations",
		}),
		ProductsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligo_migration_products_skipped_total",
			Help: "Scored products left out of a migration, by reason",
		}, []string{"reason"}),
		Compensations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_migration_compensations_total",
			Help: "Migrations that ran compensating actions",
		}),
		MarkRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_migration_mark_retries_total",
			Help: "Retried mark-migrated updates",
		}),
		MarkAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligo_migration_mark_abandoned_total",
			Help: "Committed migrations left reserved for the reconciler",
		}),
		ReservationsFixed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligo_migration_reservations_reconciled_total",
			Help: "Stale reservations handled by the reconciler",
		}, []string{"action"}), // action: "released", "finalized"
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Migrations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementFailure(kind string) {
	if m != nil {
		m.Migrations.WithLabelValues("failed").Inc()
		m.Failures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.Duration.Observe(d.Seconds())
	}
}

func (m *Metrics) AddRecordsMigrated(n int) {
	if m != nil && n > 0 {
		m.RecordsMigrated.Add(float64(n))
	}
}

func (m *Metrics) IncrementProductSkipped(reason string) {
	if m != nil {
		m.ProductsSkipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementCompensation() {
	if m != nil {
		m.Compensations.Inc()
	}
}

func (m *Metrics) IncrementMarkRetry() {
	if m != nil {
		m.MarkRetries.Inc()
	}
}

func (m *Metrics) IncrementMarkAbandoned() {
	if m != nil {
		m.MarkAbandoned.Inc()
	}
}

func (m *Metrics) AddReservationsReconciled(action string, n int) {
	if m != nil && n > 0 {
		m.ReservationsFixed.WithLabelValues(action).Add(float64(n))
	}
}
