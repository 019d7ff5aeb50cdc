// Package audit re-derives a key's hash chain from stored history and
// certifies whether it is internally consistent.
//
// Verify is a pure function over decoded entries. Auditor reads raw rows
// from the store so that a corrupted payload or timestamp is reported as a
// divergence at its position instead of failing the read.
package audit
