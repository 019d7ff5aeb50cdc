// Package store provides SQLite-backed durable storage for the pension ledger.
//
// Two tables:
//   - records: the current Record per live key (the record store)
//   - history: the append-only, hash-chained entry log per key
//
// # Invariants
//
// Append-only history
//   - Triggers abort every UPDATE and DELETE on history
//   - UNIQUE(key, position) and UNIQUE(tx_id)
//   - Deleting a record removes its records row; its history stays
//
// Atomic mutations
//   - A record mutation and its history entry commit in one transaction
//     (Store.Update); BEGIN IMMEDIATE serializes writers at the file level
//
// Deterministic reads
//   - History is ORDER BY position ASC, records ORDER BY id ASC COLLATE BINARY
//   - Reads run as one statement and observe one committed snapshot
//
// # Database Configuration
//
//   - WAL mode: concurrent readers during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for the write lock up to 5 seconds
//   - foreign_keys=ON
//
// Store does not hash. Entries arrive sealed by the engine (internal/ir);
// the store only persists them and reports the current head.
package store
