package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/queryir"
	"github.com/roach88/pensionledger/internal/querysql"
)

// ReadRecord returns the live record for key.
// Returns an ir.ErrNotFound error if the key is absent or deleted.
func (s *Store) ReadRecord(ctx context.Context, key string) (ir.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE id = ?
	`, key)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, ir.NotFound(key)
	}
	if err != nil {
		return ir.Record{}, fmt.Errorf("read record: %w", err)
	}
	return rec, nil
}

// RecordExists reports whether key has a live record.
func (s *Store) RecordExists(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE id = ?`, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("record exists: %w", err)
	}
	return count > 0, nil
}

// ListRecords returns every live record ordered by id.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListRecords(ctx context.Context) ([]ir.Record, error) {
	return s.FindRecords(ctx, queryir.Select{})
}

// FindRecords returns the live records matching q, ordered by id.
// Returns an empty slice (not nil) when none match. An invalid filter is
// reported as InvalidArgument.
func (s *Store) FindRecords(ctx context.Context, q queryir.Query) ([]ir.Record, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// RawHistory returns key's history rows oldest first without decoding them.
// Returns an empty slice (not nil) if the key never had history.
func (s *Store) RawHistory(ctx context.Context, key string) ([]RawEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM history
		WHERE key = ?
		ORDER BY position ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []RawEntry{}
	for rows.Next() {
		e, err := scanRawEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// History returns key's entries oldest first. It is a finite snapshot:
// repeated calls without new mutations return identical sequences.
// Returns an empty slice (not nil) if the key never had history. A row
// whose payload cannot be decoded is reported as an IntegrityFault.
func (s *Store) History(ctx context.Context, key string) ([]ir.HistoryEntry, error) {
	raw, err := s.RawHistory(ctx, key)
	if err != nil {
		return nil, err
	}

	entries := make([]ir.HistoryEntry, 0, len(raw))
	for _, r := range raw {
		e, err := r.Decode()
		if err != nil {
			return nil, ir.IntegrityFault(key, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// HeadHash returns the last chain hash for key, or ir.Genesis.
func (s *Store) HeadHash(ctx context.Context, key string) (string, error) {
	head, err := readHead(ctx, s.db, key)
	if err != nil {
		return "", err
	}
	return head.ChainHash, nil
}

// HistoryCount returns the number of entries for key.
func (s *Store) HistoryCount(ctx context.Context, key string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE key = ?`, key).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("history count: %w", err)
	}
	return count, nil
}

// HistoryKeys returns every key that has history, deleted keys included,
// ordered by key.
func (s *Store) HistoryKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT key
		FROM history
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query history keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan history key: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history keys: %w", err)
	}
	return keys, nil
}
