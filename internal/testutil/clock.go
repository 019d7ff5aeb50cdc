package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is where a DeterministicClock starts when none is given.
var DefaultEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe step clock for tests. Each Now()
// advances by a fixed step, so the same scenario always produces the same
// timestamps and therefore the same hashes.
//
// Unlike engine.SystemClock, DeterministicClock can be reset for test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	epoch time.Time
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock whose first Now() returns epoch and
// each later call returns the previous value plus step. A zero epoch means
// DefaultEpoch; a zero step means one second.
func NewDeterministicClock(epoch time.Time, step time.Duration) *DeterministicClock {
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}
	if step == 0 {
		step = time.Second
	}
	return &DeterministicClock{epoch: epoch.UTC(), step: step}
}

// Now returns the next timestamp.
//
// Implements engine.Clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.epoch.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock so the next Now() returns the epoch again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
