package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"signalbridge/internal/core"
)

// HealthManager aggregates health status from different components
type HealthManager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]func() error
}

// NewHealthManager creates a new health manager
func NewHealthManager(logger core.ILogger) *HealthManager {
	if logger == nil {
		return &HealthManager{
			checks: make(map[string]func() error),
		}
	}
	return &HealthManager{
		logger: logger.WithField("component", "health_manager"),
		checks: make(map[string]func() error),
	}
}

// Register adds a new health check for a component
func (hm *HealthManager) Register(component string, check func() error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
}

// Components lists registered component names in order
func (hm *HealthManager) Components() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs one component's check. Unknown components are reported as healthy=false.
func (hm *HealthManager) Check(component string) (bool, error) {
	hm.mu.RLock()
	check, ok := hm.checks[component]
	hm.mu.RUnlock()
	if !ok {
		return false, nil
	}
	err := check()
	return err == nil, err
}

// GetStatus returns the current status of all registered components
func (hm *HealthManager) GetStatus() map[string]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := make(map[string]string)
	for component, check := range hm.checks {
		if err := check(); err != nil {
			status[component] = "Unhealthy: " + err.Error()
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy returns true if all critical components are healthy
func (hm *HealthManager) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	for _, check := range hm.checks {
		if err := check(); err != nil {
			return false
		}
	}
	return true
}

// Watch evaluates the overall health every interval and calls onChange
// with the first result and each time it flips. It returns when ctx is done.
func (hm *HealthManager) Watch(ctx context.Context, interval time.Duration, onChange func(healthy bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := hm.IsHealthy()
	onChange(last)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			healthy := hm.IsHealthy()
			if healthy == last {
				continue
			}
			last = healthy
			if hm.logger != nil {
				hm.logger.Info("Health changed", "healthy", healthy, "components", hm.GetStatus())
			}
			onChange(healthy)
		}
	}
}
