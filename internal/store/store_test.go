package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"records", "history"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion+1)); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	_, err = Open(path)
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("expected newer-schema error, got %v", err)
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&count); err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", fmt.Sprint(currentSchemaVersion)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

// Schema tests

func TestSchema_RecordsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "records")
	for _, col := range []string{"id", "recipient_name", "amount", "status", "last_updated"} {
		if !contains(columns, col) {
			t.Errorf("records table missing column %q", col)
		}
	}
}

func TestSchema_HistoryTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "history")
	expected := []string{
		"seq", "key", "position", "tx_id", "timestamp", "is_delete",
		"value", "value_hash", "entry_hash", "chain_hash", "hash_version",
	}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("history table missing column %q", col)
		}
	}

	if !contains(getTableIndexes(t, s.db, "history"), "idx_history_key") {
		t.Error("history table missing index idx_history_key")
	}
}

// Constraint tests

func insertRawHistory(t *testing.T, db *sql.DB, key string, position int, txID string) error {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO history (key, position, tx_id, timestamp, is_delete, value, value_hash, entry_hash, chain_hash, hash_version)
		VALUES (?, ?, ?, '2026-01-01T00:00:00.000000000Z', 1, NULL, '', 'e', 'c', '1')
	`, key, position, txID)
	return err
}

func TestConstraint_HistoryUniqueTxID(t *testing.T) {
	s := createTestStore(t)

	if err := insertRawHistory(t, s.db, "P1", 0, "tx-1"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := insertRawHistory(t, s.db, "P2", 0, "tx-1"); err == nil {
		t.Error("expected UNIQUE(tx_id) violation, got nil")
	}
}

func TestConstraint_HistoryUniquePosition(t *testing.T) {
	s := createTestStore(t)

	if err := insertRawHistory(t, s.db, "P1", 0, "tx-1"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := insertRawHistory(t, s.db, "P1", 0, "tx-2"); err == nil {
		t.Error("expected UNIQUE(key, position) violation, got nil")
	}
}

func TestConstraint_HistoryAppendOnly(t *testing.T) {
	s := createTestStore(t)

	if err := insertRawHistory(t, s.db, "P1", 0, "tx-1"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	_, err := s.db.Exec(`UPDATE history SET chain_hash = 'x' WHERE tx_id = 'tx-1'`)
	if err == nil || !strings.Contains(err.Error(), "append-only") {
		t.Errorf("expected append-only abort on UPDATE, got %v", err)
	}

	_, err = s.db.Exec(`DELETE FROM history WHERE tx_id = 'tx-1'`)
	if err == nil || !strings.Contains(err.Error(), "append-only") {
		t.Errorf("expected append-only abort on DELETE, got %v", err)
	}
}

func TestConstraint_RecordStatus(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO records (id, recipient_name, amount, status, last_updated)
		VALUES ('P1', 'A', '1.00', 'Missing', '2026-01-01T00:00:00.000000000Z')
	`)
	if err == nil {
		t.Error("expected CHECK(status) violation, got nil")
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
