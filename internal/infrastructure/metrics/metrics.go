package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger core.
type Metrics struct {
	// Booking metrics
	Bookings      prometheus.Counter
	Proposals     prometheus.Counter
	Approvals     prometheus.Counter
	Rejections    prometheus.Counter
	Stornos       prometheus.Counter
	BalanceErrors prometheus.Counter
	BookedAmount  prometheus.Histogram

	// Anomaly metrics
	Anomalies *prometheus.CounterVec

	// Audit metrics
	AuditEntries *prometheus.CounterVec

	// Integrity metrics
	IntegrityChecks     prometheus.Counter
	IntegrityViolations prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Bookings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "saldo_bookings_total",
			Help: "Total number of booked transactions",
		}),
		Proposals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "saldo_proposals_total",
			Help: "Total number of proposed transactions",
		}),
		Approvals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "saldo_approvals_total",
			Help: "Total number of approved proposals",
		}),
		Rejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "saldo_rejections_total",
			Help: "Total number of rejected proposals",
		}),
		Stornos: promauto.NewCounter(prometheus.CounterOpts{
			Name: "saldo_stornos_total",
			Help: "Total number of storno reversals",
		}),
		BalanceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "saldo_balance_errors_total",
			Help: "Total number of bookings rejected for a balance violation",
		}),
		BookedAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "saldo_booked_amount",
			Help:    "Booked transaction amounts",
			Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000},
		}),
		Anomalies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saldo_anomalies_total",
				Help: "Total anomaly flags by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		AuditEntries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saldo_audit_entries_total",
				Help: "Total audit entries by action and risk level",
			},
			[]string{"action", "risk"},
		),
		IntegrityChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "saldo_integrity_checks_total",
			Help: "Total completed integrity verification scans",
		}),
		IntegrityViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "saldo_integrity_violations_total",
			Help: "Total integrity violations detected by verification",
		}),
	}
}
