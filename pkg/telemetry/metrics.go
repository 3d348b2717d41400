package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module wires Prometheus instrumentation via Fx.
var Module = fx.Provide(NewMetrics)

// Metrics exposes Prometheus observability primitives for the billing engine.
type Metrics struct {
	statementRequests *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	statementWarnings *prometheus.CounterVec
	invoicesInScope   prometheus.Histogram
	paymentsRecorded  *prometheus.CounterVec
}

// NewMetrics registers and returns application metrics.
func NewMetrics() *Metrics {
	statementRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medledger_statement_requests_total",
		Help: "Counts statement generations by scope kind and status.",
	}, []string{"scope", "status"})

	statementDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medledger_statement_duration_seconds",
		Help:    "Statement generation latency per scope kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})

	statementWarnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medledger_statement_warnings_total",
		Help: "Counts data-quality warnings surfaced during statement generation.",
	}, []string{"kind"})

	invoicesInScope := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "medledger_statement_invoices_in_scope",
		Help:    "Number of invoices included per statement.",
		Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000},
	})

	paymentsRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medledger_payments_recorded_total",
		Help: "Counts recorded payments by method.",
	}, []string{"method"})

	prometheus.MustRegister(
		statementRequests,
		statementDuration,
		statementWarnings,
		invoicesInScope,
		paymentsRecorded,
	)

	return &Metrics{
		statementRequests: statementRequests,
		statementDuration: statementDuration,
		statementWarnings: statementWarnings,
		invoicesInScope:   invoicesInScope,
		paymentsRecorded:  paymentsRecorded,
	}
}

// ObserveStatement records one statement generation.
func (m *Metrics) ObserveStatement(scope, status string, invoices int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.statementRequests.WithLabelValues(scope, status).Inc()
	m.statementDuration.WithLabelValues(scope).Observe(elapsed.Seconds())
	if status == "ok" {
		m.invoicesInScope.Observe(float64(invoices))
	}
}

// RecordWarning counts a data-quality warning by kind.
func (m *Metrics) RecordWarning(kind string) {
	if m == nil {
		return
	}
	m.statementWarnings.WithLabelValues(kind).Inc()
}

// RecordPayment counts a recorded payment by method.
func (m *Metrics) RecordPayment(method string) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(method).Inc()
}
