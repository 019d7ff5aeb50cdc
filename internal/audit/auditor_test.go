package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/metrics"
	"github.com/roach88/pensionledger/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// write seals and persists one entry for key; rec nil deletes.
func write(t *testing.T, s *store.Store, key, txID string, ts time.Time, rec *ir.Record) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *store.Tx) error {
		head, err := tx.Head(key)
		if err != nil {
			return err
		}
		entry, err := ir.SealEntry(txID, ts, rec, head.ChainHash)
		if err != nil {
			return err
		}
		if rec == nil {
			if err := tx.DeleteRecord(key); err != nil {
				return err
			}
		} else if err := tx.PutRecord(*rec); err != nil {
			return err
		}
		return tx.AppendEntry(key, entry)
	})
	require.NoError(t, err)
}

func seedP1(t *testing.T, s *store.Store) {
	t.Helper()
	write(t, s, "P1", "tx-1", baseTime, record("P1", "100.00", ir.StatusActive, baseTime))
	write(t, s, "P1", "tx-2", baseTime.Add(time.Second), record("P1", "150.00", ir.StatusActive, baseTime.Add(time.Second)))
	write(t, s, "P1", "tx-3", baseTime.Add(2*time.Second), nil)
}

// tamper rewrites history rows, bypassing the append-only triggers.
func tamper(t *testing.T, s *store.Store, query string, args ...any) {
	t.Helper()
	db := s.DB()
	_, err := db.Exec(`DROP TRIGGER history_no_update`)
	require.NoError(t, err)
	_, err = db.Exec(query, args...)
	require.NoError(t, err)
}

func TestAuditor_ValidHistory(t *testing.T) {
	s := openStore(t)
	seedP1(t, s)

	result, err := New(s).Audit(context.Background(), "P1")
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Len(t, result.Entries, 3)
	assert.True(t, result.Entries[2].IsDelete)

	head, err := s.HeadHash(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, head, result.FinalChainHash)
}

func TestAuditor_UnknownKey(t *testing.T) {
	s := openStore(t)

	_, err := New(s).Audit(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ir.ErrNotFound)
}

func TestAuditor_TamperedAmount(t *testing.T) {
	s := openStore(t)
	seedP1(t, s)
	tamper(t, s, `UPDATE history SET value = replace(value, '"150.00"', '"950.00"') WHERE tx_id = 'tx-2'`)

	result, err := New(s).Audit(context.Background(), "P1")
	require.NoError(t, err)

	assert.False(t, result.Valid)
	require.NotNil(t, result.Divergence)
	assert.Equal(t, 1, result.Divergence.Index)
	assert.Equal(t, "tx-2", result.Divergence.TxID)
	assert.Equal(t, ir.FieldValueHash, result.Divergence.Field)
}

func TestAuditor_TamperedChainHash(t *testing.T) {
	s := openStore(t)
	seedP1(t, s)
	tamper(t, s, `UPDATE history SET chain_hash = ? WHERE tx_id = 'tx-1'`, ir.Genesis)

	result, err := New(s).Audit(context.Background(), "P1")
	require.NoError(t, err)

	require.NotNil(t, result.Divergence)
	assert.Equal(t, 0, result.Divergence.Index)
	assert.Equal(t, ir.FieldChainHash, result.Divergence.Field)
	assert.Equal(t, ir.Genesis, result.Divergence.Actual)
}

func TestAuditor_NonCanonicalPayload(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"extra key", `UPDATE history SET value = replace(value, '{', '{"bonus":"1",') WHERE tx_id = 'tx-2'`},
		{"whitespace", `UPDATE history SET value = replace(value, ',"', ', "') WHERE tx_id = 'tx-2'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openStore(t)
			seedP1(t, s)
			tamper(t, s, tt.query)

			result, err := New(s).Audit(context.Background(), "P1")
			require.NoError(t, err)

			assert.False(t, result.Valid)
			require.NotNil(t, result.Divergence)
			assert.Equal(t, 1, result.Divergence.Index)
			assert.Equal(t, ir.FieldValue, result.Divergence.Field)
			assert.Equal(t, ir.MustValueHash(*result.Entries[1].Value), result.Entries[1].ValueHash,
				"decoded record still matches its stored hash")
		})
	}
}

func TestAuditor_CorruptPayload(t *testing.T) {
	s := openStore(t)
	seedP1(t, s)
	tamper(t, s, `UPDATE history SET value = '{not json' WHERE tx_id = 'tx-2'`)

	result, err := New(s).Audit(context.Background(), "P1")
	require.NoError(t, err)

	require.NotNil(t, result.Divergence)
	assert.Equal(t, 1, result.Divergence.Index)
	assert.Equal(t, ir.FieldValue, result.Divergence.Field)
	assert.Equal(t, "{not json", result.Divergence.Actual)
}

func TestAuditor_CorruptTimestamp(t *testing.T) {
	s := openStore(t)
	seedP1(t, s)
	tamper(t, s, `UPDATE history SET timestamp = 'yesterday' WHERE tx_id = 'tx-1'`)

	result, err := New(s).Audit(context.Background(), "P1")
	require.NoError(t, err)

	require.NotNil(t, result.Divergence)
	assert.Equal(t, 0, result.Divergence.Index)
	assert.Equal(t, ir.FieldTimestamp, result.Divergence.Field)
}

func TestAuditor_Metrics(t *testing.T) {
	s := openStore(t)
	seedP1(t, s)
	m := metrics.New(prometheus.NewRegistry())
	a := New(s, WithMetrics(m))

	_, err := a.Audit(context.Background(), "P1")
	require.NoError(t, err)
	tamper(t, s, `UPDATE history SET entry_hash = ? WHERE tx_id = 'tx-3'`, ir.Genesis)
	_, err = a.Audit(context.Background(), "P1")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Audits.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Audits.WithLabelValues("invalid")))
}

func TestAuditor_VerifyAll(t *testing.T) {
	s := openStore(t)
	seedP1(t, s)
	write(t, s, "P2", "tx-4", baseTime, record("P2", "12500.00", ir.StatusRetired, baseTime))
	write(t, s, "P0", "tx-5", baseTime, record("P0", "1.00", ir.StatusActive, baseTime))
	tamper(t, s, `UPDATE history SET value_hash = ? WHERE tx_id = 'tx-4'`, ir.Genesis)

	results, err := New(s).VerifyAll(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "P0", results[0].ID)
	assert.Equal(t, "P1", results[1].ID)
	assert.Equal(t, "P2", results[2].ID)
	assert.True(t, results[0].Valid)
	assert.True(t, results[1].Valid, "deleted keys are still audited")
	assert.False(t, results[2].Valid)
}

func TestAuditor_VerifyAllEmpty(t *testing.T) {
	s := openStore(t)

	results, err := New(s).VerifyAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
