package engine

import (
	"sync"

	"github.com/google/uuid"
)

// TxIDGenerator assigns transaction ids when the caller does not supply one.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type TxIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 transaction ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time, which helps when reading a history by eye.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Format: "018f3b1c-7d2e-7a4b-9c1d-2e3f4a5b6c7d" (36 characters)
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined transaction ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("tx-1", "tx-2")
//	gen.Generate() // "tx-1"
//	gen.Generate() // "tx-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which flags a test that submitted
// more transactions than it planned.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
