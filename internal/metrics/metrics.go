package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for transactions. Rejections carry the ledger error code
// instead ("AlreadyExists", "InvalidAmount", ...); OutcomeError is left for
// failures outside the taxonomy.
const (
	OutcomeCommitted = "committed"
	OutcomeError     = "error"
)

// Metrics provides observability for the ledger engine and verifier.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	// Submitted transactions by kind and outcome
	Transactions *prometheus.CounterVec

	// Latency of Submit, lock wait included
	TransactionDuration *prometheus.HistogramVec

	// Audit results: valid, invalid
	Audits *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg. Passing nil registers
// with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pledger_transactions_total",
			Help: "Total ledger transactions by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: "committed", an error code, or "error"

		TransactionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pledger_transaction_duration_seconds",
			Help:    "Duration of ledger transactions including per-key lock wait",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),

		Audits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pledger_audits_total",
			Help: "Total hash chain audits by result",
		}, []string{"result"}), // result: "valid", "invalid"
	}
}

// ObserveTransaction records one transaction's outcome and duration.
func (m *Metrics) ObserveTransaction(kind, outcome string, d time.Duration) {
	if m != nil {
		m.Transactions.WithLabelValues(kind, outcome).Inc()
		m.TransactionDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncrementAudit records an audit result.
func (m *Metrics) IncrementAudit(valid bool) {
	if m != nil {
		result := "invalid"
		if valid {
			result = "valid"
		}
		m.Audits.WithLabelValues(result).Inc()
	}
}
