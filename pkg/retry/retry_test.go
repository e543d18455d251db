package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errDial = errors.New("dial refused")

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var notified []int
	err := DoWithNotify(context.Background(), fastPolicy(5), Always, func(attempt int, err error, _ time.Duration) {
		notified = append(notified, attempt)
	}, func() error {
		calls++
		if calls < 3 {
			return errDial
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad identity")
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(err error) bool {
		return !errors.Is(err, permanent)
	}, func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), Always, func() error {
		calls++
		return errDial
	})

	assert.ErrorIs(t, err, errDial)
	assert.Equal(t, 3, calls)
}

func TestDo_UnlimitedUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, fastPolicy(0), Always, func() error {
		calls++
		return errDial
	})

	assert.ErrorIs(t, err, errDial)
	assert.Greater(t, calls, 1)
}
