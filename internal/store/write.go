package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/pensionledger/internal/ir"
)

// Tx is a write transaction. Every record mutation and history append made
// through one Tx commits together or not at all.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Head describes the tail of one key's history.
type Head struct {
	Count     int64     // number of entries; the next entry's position
	ChainHash string    // last chain hash, or ir.Genesis when Count is 0
	Timestamp time.Time // last entry's timestamp, zero when Count is 0
}

// Update runs fn inside a write transaction and commits if fn returns nil.
// The transaction starts with BEGIN IMMEDIATE, so concurrent writers queue
// on the database lock instead of failing at commit time.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Record returns the live record for key. found is false when absent.
func (t *Tx) Record(key string) (rec ir.Record, found bool, err error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE id = ?
	`, key)

	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, false, nil
	}
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("read record: %w", err)
	}
	return rec, true, nil
}

// PutRecord inserts or replaces the live record.
func (t *Tx) PutRecord(r ir.Record) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO records (id, recipient_name, amount, status, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recipient_name = excluded.recipient_name,
			amount         = excluded.amount,
			status         = excluded.status,
			last_updated   = excluded.last_updated
	`,
		r.ID,
		r.RecipientName,
		r.Amount.String(),
		string(r.Status),
		ir.FormatTimestamp(r.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// DeleteRecord removes the live record for key. History is untouched.
func (t *Tx) DeleteRecord(key string) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM records WHERE id = ?`, key)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: rows affected: %w", err)
	}
	if n == 0 {
		return ir.NotFound(key)
	}
	return nil
}

// Head returns the tail of key's history as seen by this transaction.
func (t *Tx) Head(key string) (Head, error) {
	return readHead(t.ctx, t.tx, key)
}

// HasTx reports whether txID is already anchored in any key's history.
func (t *Tx) HasTx(txID string) (bool, error) {
	var count int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM history WHERE tx_id = ?`, txID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check tx id: %w", err)
	}
	return count > 0, nil
}

// AppendEntry appends a sealed entry at the next position of key. The
// position is assigned here; linking entry to the current head is the
// caller's job. A duplicate tx_id, or a position taken by a racing writer,
// is reported as AlreadyExists.
func (t *Tx) AppendEntry(key string, entry ir.HistoryEntry) error {
	if entry.IsDelete != (entry.Value == nil) {
		return ir.IntegrityFault(key, fmt.Errorf("entry %s: isDelete=%t with value present=%t", entry.TxID, entry.IsDelete, entry.Value != nil))
	}

	value, err := marshalValue(entry.Value)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO history
		(key, position, tx_id, timestamp, is_delete, value, value_hash, entry_hash, chain_hash, hash_version)
		VALUES (?, (SELECT COUNT(*) FROM history WHERE key = ?), ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		key,
		key,
		entry.TxID,
		ir.FormatTimestamp(entry.Timestamp),
		entry.IsDelete,
		value,
		entry.ValueHash,
		entry.EntryHash,
		entry.ChainHash,
		ir.HashVersion,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return &ir.Error{Code: ir.CodeAlreadyExists, Key: key, TxID: entry.TxID, Message: "transaction id or position already used", Err: err}
		}
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readHead(ctx context.Context, q querier, key string) (Head, error) {
	var (
		count     int64
		chainHash sql.NullString
		ts        sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM history WHERE key = ?1),
			(SELECT chain_hash FROM history WHERE key = ?1 ORDER BY position DESC LIMIT 1),
			(SELECT timestamp  FROM history WHERE key = ?1 ORDER BY position DESC LIMIT 1)
	`, key).Scan(&count, &chainHash, &ts)
	if err != nil {
		return Head{}, fmt.Errorf("read head: %w", err)
	}

	if count == 0 {
		return Head{ChainHash: ir.Genesis}, nil
	}
	if !chainHash.Valid || !ts.Valid {
		return Head{}, ir.IntegrityFault(key, errors.New("history tail has no chain hash"))
	}

	last, err := ir.ParseTimestamp(ts.String)
	if err != nil {
		return Head{}, ir.IntegrityFault(key, err)
	}
	return Head{Count: count, ChainHash: chainHash.String, Timestamp: last}, nil
}
