package bootstrap

import (
	"context"
	"fmt"
	"time"

	"signalbridge/internal/core"
	"signalbridge/pkg/retry"
)

// Restartable is a connection that can be restarted after it broke
type Restartable interface {
	Start(ctx context.Context) error
	Stop() error
	Broken() bool
}

// Supervisor starts a Restartable with retries and restarts it whenever it
// reports a broken connection. It stops it when the context ends.
type Supervisor struct {
	target   Restartable
	policy   retry.RetryPolicy
	interval time.Duration
	logger   core.ILogger
}

func NewSupervisor(target Restartable, policy retry.RetryPolicy, interval time.Duration, logger core.ILogger) *Supervisor {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Supervisor{
		target:   target,
		policy:   policy,
		interval: interval,
		logger:   logger.WithField("component", "supervisor"),
	}
}

// Run blocks until ctx is done or the retry policy is exhausted
func (s *Supervisor) Run(ctx context.Context) error {
	defer func() {
		if err := s.target.Stop(); err != nil {
			s.logger.Warn("Stop on shutdown failed", "error", err)
		}
	}()

	if err := s.start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("initial connect: %w", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.target.Broken() {
				continue
			}
			s.logger.Warn("Connection broken, restarting")
			if err := s.target.Stop(); err != nil {
				s.logger.Warn("Stop before restart failed", "error", err)
			}
			if err := s.start(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("reconnect: %w", err)
			}
		}
	}
}

func (s *Supervisor) start(ctx context.Context) error {
	notify := func(attempt int, err error, wait time.Duration) {
		s.logger.Warn("Connect failed, retrying", "attempt", attempt, "error", err, "wait", wait)
	}
	return retry.DoWithNotify(ctx, s.policy, retry.Always, notify, func() error {
		return s.target.Start(ctx)
	})
}
