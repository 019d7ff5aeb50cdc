package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyMutex()
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Lock(ctx, "P1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load(), "at most one holder per key")
	assert.Zero(t, m.Len(), "entries are removed after release")
}

func TestKeyMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyMutex()
	ctx := context.Background()

	releaseA, err := m.Lock(ctx, "A")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := m.Lock(ctx, "B")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on B blocked behind A")
	}
}

func TestKeyMutex_ContextCancel(t *testing.T) {
	m := NewKeyMutex()

	release, err := m.Lock(context.Background(), "P1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Lock(ctx, "P1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, m.Len(), "waiter reference dropped on cancel")

	release()
	assert.Zero(t, m.Len())
}

func TestKeyMutex_ReleaseIdempotent(t *testing.T) {
	m := NewKeyMutex()
	ctx := context.Background()

	release, err := m.Lock(ctx, "P1")
	require.NoError(t, err)
	release()
	release()

	release2, err := m.Lock(ctx, "P1")
	require.NoError(t, err)
	release2()
	assert.Zero(t, m.Len())
}
