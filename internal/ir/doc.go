// Package ir provides the canonical ledger representation for pensionledger.
//
// This package holds the record and history entry types, the canonical JSON
// encoding used for every hash input, the domain-separated digests that link
// history entries into a chain, and the error taxonomy shared by the store,
// engine and audit packages. All other internal packages import ir; ir
// imports nothing internal.
//
// Key design constraints:
//   - NO float types in hash inputs - amounts travel as fixed 2-digit strings
//   - Timestamps hash in one profile: UTC, nanosecond precision, trailing Z
//   - Record.Value is a pointer; a delete entry has no value
//   - JSON tags use the camelCase wire names of the relay (id, txId, ...)
package ir
