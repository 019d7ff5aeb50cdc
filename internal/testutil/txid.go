package testutil

import (
	"fmt"
	"sync"
)

// SequentialTxIDs generates "<prefix>-0001", "<prefix>-0002", ... so that
// scenario histories are byte-identical across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialTxIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTxIDs creates a generator. An empty prefix means "tx".
func NewSequentialTxIDs(prefix string) *SequentialTxIDs {
	if prefix == "" {
		prefix = "tx"
	}
	return &SequentialTxIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.TxIDGenerator.
func (g *SequentialTxIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialTxIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
