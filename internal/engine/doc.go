// Package engine applies pension transactions to the ledger.
//
// Every mutation runs the same pipeline:
//
//  1. validate the request (InvalidArgument, InvalidAmount)
//  2. take the key's lock
//  3. open a write transaction
//  4. reject a reused txId (AlreadyExists)
//  5. pick the commit timestamp, never earlier than the key's last entry
//  6. compute the next record with Apply, the pure state machine
//  7. seal a history entry linked to the key's head hash
//  8. write the record (or remove it) and append the entry
//  9. commit
//
// A failure at any step leaves both the record and the history untouched.
//
// Reads go straight to the store and never take a lock. SQLite in WAL mode
// gives each read a committed snapshot.
package engine
