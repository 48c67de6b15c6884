package entitylock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interval records one acquire/release span of an instrumented lock body.
type interval struct {
	key   string
	start time.Time
	end   time.Time
}

func overlap(a, b interval) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

type recorder struct {
	mu        sync.Mutex
	intervals []interval
}

func (r *recorder) record(iv interval) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervals = append(r.intervals, iv)
}

func runLocked(t *testing.T, km *KeyedMutex, rec *recorder, key string, hold time.Duration) {
	t.Helper()
	err := km.WithLock(key, func() error {
		iv := interval{key: key, start: time.Now()}
		time.Sleep(hold)
		iv.end = time.Now()
		rec.record(iv)
		return nil
	})
	require.NoError(t, err)
}

func TestWithLock_SameKeySerializes(t *testing.T) {
	km := NewKeyedMutex()
	rec := &recorder{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runLocked(t, km, rec, "Order-42", 5*time.Millisecond)
		}()
	}
	wg.Wait()

	require.Len(t, rec.intervals, 8)
	for i := 0; i < len(rec.intervals); i++ {
		for j := i + 1; j < len(rec.intervals); j++ {
			assert.False(t, overlap(rec.intervals[i], rec.intervals[j]),
				"same-key lock spans must never overlap")
		}
	}
}

func TestWithLock_DifferentKeysRunInParallel(t *testing.T) {
	km := NewKeyedMutex()
	rec := &recorder{}

	var wg sync.WaitGroup
	for _, key := range []string{"Order-42", "Shipment-9"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			runLocked(t, km, rec, key, 100*time.Millisecond)
		}(key)
	}
	wg.Wait()

	require.Len(t, rec.intervals, 2)
	assert.True(t, overlap(rec.intervals[0], rec.intervals[1]),
		"different keys must not be serialized against each other")
}

func TestWithLock_ErrorPropagatesAndReleases(t *testing.T) {
	km := NewKeyedMutex()

	bodyErr := errors.New("ledger unavailable")
	err := km.WithLock("Order-42", func() error {
		return bodyErr
	})
	assert.ErrorIs(t, err, bodyErr)

	// A second acquisition must not block.
	done := make(chan struct{})
	go func() {
		_ = km.WithLock("Order-42", func() error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not released after body error")
	}
}

func TestWithLock_PanicReleases(t *testing.T) {
	km := NewKeyedMutex()

	func() {
		defer func() { recover() }()
		_ = km.WithLock("Order-42", func() error {
			panic("boom")
		})
	}()

	done := make(chan struct{})
	go func() {
		_ = km.WithLock("Order-42", func() error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not released after body panic")
	}
}
