package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthManager_Aggregation(t *testing.T) {
	hm := NewHealthManager(nil)
	assert.True(t, hm.IsHealthy(), "empty manager is healthy")

	hm.Register("transport", func() error { return nil })
	assert.True(t, hm.IsHealthy())

	hm.Register("venue", func() error { return errors.New("failed") })
	assert.False(t, hm.IsHealthy())

	status := hm.GetStatus()
	assert.Equal(t, "Healthy", status["transport"])
	assert.Equal(t, "Unhealthy: failed", status["venue"])
	assert.Equal(t, []string{"transport", "venue"}, hm.Components())
}

func TestHealthManager_Check(t *testing.T) {
	hm := NewHealthManager(nil)
	hm.Register("transport", func() error { return errors.New("down") })

	ok, err := hm.Check("transport")
	assert.False(t, ok)
	assert.EqualError(t, err, "down")

	ok, err = hm.Check("missing")
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestHealthManager_WatchReportsFlips(t *testing.T) {
	hm := NewHealthManager(nil)
	var broken atomic.Bool
	hm.Register("transport", func() error {
		if broken.Load() {
			return errors.New("broken")
		}
		return nil
	})

	var mu sync.Mutex
	var seen []bool
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hm.Watch(ctx, 2*time.Millisecond, func(healthy bool) {
			mu.Lock()
			seen = append(seen, healthy)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(seen) == 1 }, time.Second, time.Millisecond)
	broken.Store(true)
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(seen) == 2 }, time.Second, time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}
