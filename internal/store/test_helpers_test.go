package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pensionledger/internal/ir"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id, amount string, ts time.Time) ir.Record {
	return ir.Record{
		ID:            id,
		RecipientName: "Test Recipient",
		Amount:        ir.MustAmount(amount),
		Status:        ir.StatusActive,
		LastUpdated:   ts,
	}
}

// commit writes rec (or deletes key when rec is nil) and appends the
// matching sealed entry, the way the engine does.
func commit(t *testing.T, s *Store, key, txID string, ts time.Time, rec *ir.Record) ir.HistoryEntry {
	t.Helper()

	var entry ir.HistoryEntry
	err := s.Update(context.Background(), func(tx *Tx) error {
		head, err := tx.Head(key)
		if err != nil {
			return err
		}
		entry, err = ir.SealEntry(txID, ts, rec, head.ChainHash)
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
	return entry
}
