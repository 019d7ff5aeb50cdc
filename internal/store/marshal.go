package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/querysql"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const recordColumns = querysql.RecordColumns

// scanRecord decodes one records row.
func scanRecord(row scanner) (ir.Record, error) {
	var (
		r           ir.Record
		amount      string
		status      string
		lastUpdated string
	)
	if err := row.Scan(&r.ID, &r.RecipientName, &amount, &status, &lastUpdated); err != nil {
		return ir.Record{}, err
	}

	a, err := ir.ParseAmount(amount)
	if err != nil {
		return ir.Record{}, fmt.Errorf("record %q: amount: %w", r.ID, err)
	}
	r.Amount = a
	r.Status = ir.Status(status)

	ts, err := ir.ParseTimestamp(lastUpdated)
	if err != nil {
		return ir.Record{}, fmt.Errorf("record %q: last_updated: %w", r.ID, err)
	}
	r.LastUpdated = ts

	return r, nil
}

// RawEntry is a history row as persisted, before the value payload and
// timestamp are decoded. The audit verifier works from raw rows so that a
// corrupted payload is reported as a divergence instead of a read error.
type RawEntry struct {
	Seq         int64
	Key         string
	Position    int64
	TxID        string
	Timestamp   string
	IsDelete    bool
	Value       sql.NullString
	ValueHash   string
	EntryHash   string
	ChainHash   string
	HashVersion string
}

const historyColumns = `seq, key, position, tx_id, timestamp, is_delete, value, value_hash, entry_hash, chain_hash, hash_version`

// scanRawEntry decodes one history row without interpreting it.
func scanRawEntry(row scanner) (RawEntry, error) {
	var e RawEntry
	err := row.Scan(
		&e.Seq,
		&e.Key,
		&e.Position,
		&e.TxID,
		&e.Timestamp,
		&e.IsDelete,
		&e.Value,
		&e.ValueHash,
		&e.EntryHash,
		&e.ChainHash,
		&e.HashVersion,
	)
	if err != nil {
		return RawEntry{}, err
	}
	return e, nil
}

// Decode converts the raw row into a HistoryEntry. It fails on an
// unparsable timestamp or value payload.
func (e RawEntry) Decode() (ir.HistoryEntry, error) {
	ts, err := ir.ParseTimestamp(e.Timestamp)
	if err != nil {
		return ir.HistoryEntry{}, fmt.Errorf("history %q position %d: %w", e.Key, e.Position, err)
	}

	entry := ir.HistoryEntry{
		TxID:      e.TxID,
		Timestamp: ts,
		IsDelete:  e.IsDelete,
		ValueHash: e.ValueHash,
		EntryHash: e.EntryHash,
		ChainHash: e.ChainHash,
	}

	if e.Value.Valid {
		r, err := ir.UnmarshalRecord([]byte(e.Value.String))
		if err != nil {
			return ir.HistoryEntry{}, fmt.Errorf("history %q position %d: %w", e.Key, e.Position, err)
		}
		entry.Value = &r
	}

	return entry, nil
}

// marshalValue renders an entry payload for the value column. Delete
// entries store NULL.
func marshalValue(value *ir.Record) (sql.NullString, error) {
	if value == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonicalRecord(*value)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
