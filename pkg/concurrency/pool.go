package concurrency

import (
	"fmt"
	"sync"
	"time"

	"signalbridge/internal/core"
	apperrors "signalbridge/pkg/errors"

	"github.com/alitto/pond"
)

// PoolConfig holds configuration for a worker pool
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
	NonBlocking bool // If true, Submit() returns ErrPoolFull instead of blocking when full
}

// WorkerPool wraps alitto/pond with a stop guard and standardized config.
// Tasks submitted after Stop are rejected rather than panicking inside pond.
type WorkerPool struct {
	pool    *pond.WorkerPool
	config  PoolConfig
	logger  core.ILogger
	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(cfg PoolConfig, logger core.ILogger) *WorkerPool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 1024
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Second
	}

	logger = logger.WithField("component", "worker_pool").WithField("pool", cfg.Name)

	pool := pond.New(
		cfg.MaxWorkers,
		cfg.MaxCapacity,
		pond.MinWorkers(1),
		pond.IdleTimeout(cfg.IdleTimeout),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			logger.Error("Worker pool panic recovered", "panic", p)
		}),
	)

	return &WorkerPool{
		pool:   pool,
		config: cfg,
		logger: logger,
	}
}

// Submit adds a task to the pool
func (wp *WorkerPool) Submit(task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return fmt.Errorf("worker pool '%s' is stopped: %w", wp.config.Name, apperrors.ErrPoolFull)
	}

	if wp.config.NonBlocking {
		if !wp.pool.TrySubmit(task) {
			return fmt.Errorf("worker pool '%s' (capacity %d): %w", wp.config.Name, wp.config.MaxCapacity, apperrors.ErrPoolFull)
		}
		return nil
	}

	wp.pool.Submit(task)
	return nil
}

// TrySubmit never blocks, whatever the pool mode: a full queue returns ErrPoolFull.
func (wp *WorkerPool) TrySubmit(task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return fmt.Errorf("worker pool '%s' is stopped: %w", wp.config.Name, apperrors.ErrPoolFull)
	}
	if !wp.pool.TrySubmit(task) {
		return fmt.Errorf("worker pool '%s' (capacity %d): %w", wp.config.Name, wp.config.MaxCapacity, apperrors.ErrPoolFull)
	}
	return nil
}

// Stop waits for queued tasks to finish and releases the workers. Safe to call twice.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	wp.mu.Unlock()

	wp.pool.StopAndWait()
	wp.logger.Debug("Worker pool stopped", "completed", wp.pool.CompletedTasks())
}

// Stats returns pool statistics
func (wp *WorkerPool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"running_workers":  wp.pool.RunningWorkers(),
		"idle_workers":     wp.pool.IdleWorkers(),
		"submitted_tasks":  wp.pool.SubmittedTasks(),
		"waiting_tasks":    wp.pool.WaitingTasks(),
		"successful_tasks": wp.pool.SuccessfulTasks(),
		"failed_tasks":     wp.pool.FailedTasks(),
	}
}
