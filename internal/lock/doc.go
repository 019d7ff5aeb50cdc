// Package lock provides per-key mutual exclusion for ledger writers.
//
// Appending to a key's history is a read-head, seal, append sequence that
// must not interleave with another append to the same key. KeyMutex covers
// a single process; RedisLocker covers several relay processes sharing one
// database. Both satisfy engine.Locker.
package lock
