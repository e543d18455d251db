package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{Name: "test", MaxWorkers: 4, MaxCapacity: 64}, logging.NopLogger{})

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		}))
	}
	wg.Wait()
	pool.Stop()

	assert.Equal(t, int64(50), atomic.LoadInt64(&counter))
}

func TestWorkerPool_NonBlockingFull(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{Name: "tiny", MaxWorkers: 1, MaxCapacity: 1, NonBlocking: true}, logging.NopLogger{})
	defer pool.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// one queued task fills the buffer, the next must be refused
	var rejected bool
	for i := 0; i < 4; i++ {
		if err := pool.Submit(func() {}); err != nil {
			assert.True(t, errors.Is(err, apperrors.ErrPoolFull))
			rejected = true
			break
		}
	}
	close(release)
	assert.True(t, rejected)
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{Name: "stopped"}, logging.NopLogger{})
	pool.Stop()
	pool.Stop()

	err := pool.Submit(func() {})
	assert.ErrorIs(t, err, apperrors.ErrPoolFull)
}

func TestWorkerPool_PanicRecovered(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{Name: "panic", MaxWorkers: 1}, logging.NopLogger{})
	defer pool.Stop()

	_ = pool.Submit(func() { panic("boom") })

	done := make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped running tasks after a panic")
	}
}

func TestWorkerPool_TrySubmitNeverBlocks(t *testing.T) {
	// blocking mode, one worker, one queue slot
	pool := NewWorkerPool(PoolConfig{Name: "try", MaxWorkers: 1, MaxCapacity: 1}, logging.NopLogger{})
	release := make(chan struct{})
	defer func() {
		close(release)
		pool.Stop()
	}()

	park := func() { <-release }
	var full error
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for i := 0; i < 5; i++ {
			if err := pool.TrySubmit(park); err != nil {
				full = err
				return
			}
		}
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("TrySubmit blocked on a saturated pool")
	}
	assert.ErrorIs(t, full, apperrors.ErrPoolFull)
}

func BenchmarkWorkerPool_Submit(b *testing.B) {
	pool := NewWorkerPool(PoolConfig{
		Name:        "BenchmarkPool",
		MaxWorkers:  10,
		MaxCapacity: 1000,
	}, logging.NopLogger{})
	defer pool.Stop()

	b.ResetTimer()
	var counter int64
	for i := 0; i < b.N; i++ {
		_ = pool.Submit(func() {
			atomic.AddInt64(&counter, 1)
		})
	}
}
