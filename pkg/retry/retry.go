package retry

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy defines how to retry an operation.
// MaxAttempts <= 0 retries until the context is cancelled.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy is the connect policy used when none is configured
var DefaultPolicy = RetryPolicy{
	MaxAttempts:    5,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// IsTransientFunc defines if an error is transient and should be retried
type IsTransientFunc func(error) bool

// NotifyFunc is called before sleeping with the failed attempt number and its error
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Always treats every error as transient
func Always(error) bool { return true }

// Do executes a function with retries according to the policy
func Do(ctx context.Context, policy RetryPolicy, isTransient IsTransientFunc, fn func() error) error {
	return DoWithNotify(ctx, policy, isTransient, nil, fn)
}

// DoWithNotify is Do with a hook invoked after each failed attempt that will be retried
func DoWithNotify(ctx context.Context, policy RetryPolicy, isTransient IsTransientFunc, notify NotifyFunc, fn func() error) error {
	var err error
	backoff := policy.InitialBackoff
	if backoff <= 0 {
		backoff = DefaultPolicy.InitialBackoff
	}
	maxBackoff := policy.MaxBackoff
	if maxBackoff < backoff {
		maxBackoff = backoff
	}

	for attempt := 1; policy.MaxAttempts <= 0 || attempt <= policy.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !isTransient(err) {
			return err
		}

		if attempt == policy.MaxAttempts {
			break
		}

		// backoff + random(0, 50% of backoff)
		sleepTime := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
		if notify != nil {
			notify(attempt, err, sleepTime)
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(sleepTime):
			backoff = minDuration(backoff*2, maxBackoff)
		}
	}

	return err
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
