// Package health aggregates component health checks for the ops endpoint.
package health

import (
	"context"
	"sync"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single component check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	Message string `json:"message,omitempty"`

	// Duration is the check's wall time in milliseconds.
	Duration int64 `json:"duration_ms"`
}

// Status is the aggregated health of the service.
type Status struct {
	// Status is "ready" when every check passed, "unhealthy" otherwise.
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker runs registered component checks.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]CheckFunc
	checkTimeout time.Duration
}

// New creates a checker. A zero timeout defaults to 5 seconds per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck adds or replaces a named component check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// CheckLiveness reports process liveness without probing components.
func (c *Checker) CheckLiveness(ctx context.Context) Status {
	return Status{Status: "ok", Timestamp: time.Now().UTC()}
}

// CheckReadiness probes every registered component concurrently and
// aggregates the results.
func (c *Checker) CheckReadiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	status := Status{
		Status:    "ready",
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now().UTC(),
	}
	if len(checks) == 0 {
		return status
	}

	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)
			result := CheckResult{
				Status:   "ok",
				Duration: time.Since(start).Milliseconds(),
			}
			if err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}

			resultMu.Lock()
			status.Checks[name] = result
			if err != nil {
				status.Status = "unhealthy"
			}
			resultMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	return status
}
