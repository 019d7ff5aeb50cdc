package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTransaction(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransaction("Create", OutcomeCommitted, 3*time.Millisecond)
	m.ObserveTransaction("Create", OutcomeCommitted, time.Millisecond)
	m.ObserveTransaction("Withdraw", "InvalidAmount", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transactions.WithLabelValues("Create", OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("Withdraw", "InvalidAmount")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.TransactionDuration))
}

func TestIncrementAudit(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementAudit(true)
	m.IncrementAudit(false)
	m.IncrementAudit(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Audits.WithLabelValues("valid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Audits.WithLabelValues("invalid")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransaction("Create", OutcomeCommitted, time.Millisecond)
		m.IncrementAudit(true)
	})
}

func TestRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	// Vectors without observations are not gathered.
	assert.Empty(t, families)

	assert.Panics(t, func() { New(reg) }, "duplicate registration panics like promauto")
}
