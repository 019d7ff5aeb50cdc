package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtEpoch(t *testing.T) {
	clock := NewDeterministicClock(time.Time{}, 0)
	assert.Equal(t, int64(0), clock.Ticks())
	assert.Equal(t, DefaultEpoch, clock.Now())
}

func TestDeterministicClock_Steps(t *testing.T) {
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewDeterministicClock(epoch, time.Minute)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(time.Minute), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Minute), clock.Now())
	assert.Equal(t, int64(3), clock.Ticks())
}

func TestDeterministicClock_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+6", 6*60*60)
	clock := NewDeterministicClock(time.Date(2026, 1, 1, 6, 0, 0, 0, loc), 0)

	now := clock.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, DefaultEpoch, now)
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(time.Time{}, 0)

	clock.Now()
	clock.Now()
	clock.Now()
	assert.Equal(t, int64(3), clock.Ticks())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Ticks())

	// First call after reset returns the epoch
	assert.Equal(t, DefaultEpoch, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(time.Time{}, time.Nanosecond)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]time.Time, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		results[i] = make([]time.Time, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results[idx][j] = clock.Now()
			}
		}(i)
	}

	wg.Wait()

	seen := make(map[time.Time]bool)
	for i := range results {
		for _, ts := range results[i] {
			require.False(t, seen[ts], "duplicate timestamp %s", ts)
			seen[ts] = true
		}
	}
	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
}

func TestDeterministicClock_Deterministic(t *testing.T) {
	clock1 := NewDeterministicClock(time.Time{}, 0)
	clock2 := NewDeterministicClock(time.Time{}, 0)

	for i := 0; i < 100; i++ {
		assert.Equal(t, clock1.Now(), clock2.Now())
	}
}
