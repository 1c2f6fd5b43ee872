package utils

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthStatus is the latest dependency snapshot.
type HealthStatus struct {
	Ready     bool              `json:"ready"`
	Checks    map[string]bool   `json:"checks"`
	Errors    map[string]string `json:"errors,omitempty"`
	CheckedAt time.Time         `json:"checkedAt"`
}

// HealthMonitor periodically probes dependencies and keeps the result in
// memory so readiness requests never block on them.
type HealthMonitor struct {
	checks  map[string]HealthCheck
	timeout time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	current HealthStatus
}

func NewHealthMonitor(timeout time.Duration, checks map[string]HealthCheck) *HealthMonitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthMonitor{checks: checks, timeout: timeout, now: time.Now}
}

// Status returns the latest stored snapshot.
func (h *HealthMonitor) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// CheckNow probes every dependency concurrently and stores the result.
func (h *HealthMonitor) CheckNow(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		status = HealthStatus{Ready: true, Checks: make(map[string]bool, len(h.checks))}
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			status.Checks[name] = err == nil
			if err != nil {
				status.Ready = false
				if status.Errors == nil {
					status.Errors = make(map[string]string)
				}
				status.Errors[name] = err.Error()
			}
		}(name, check)
	}
	wg.Wait()
	status.CheckedAt = h.now()

	h.mu.Lock()
	h.current = status
	h.mu.Unlock()
	return status
}

// Start checks immediately and then every interval until ctx is done.
func (h *HealthMonitor) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if s := h.CheckNow(ctx); !s.Ready {
				GetLogger().Warn("dependency check failed", zap.Any("errors", s.Errors))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
