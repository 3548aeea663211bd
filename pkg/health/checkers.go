package health

import (
	"context"
	"time"
)

// DefaultCheckTimeout bounds a check when the caller gives no timeout.
const DefaultCheckTimeout = 5 * time.Second

// Checkable is an interface for components that support health checks
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckableFunc adapts a function to Checkable.
type CheckableFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckableFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// AdapterChecker creates a health checker for any component that implements Checkable
type AdapterChecker struct {
	name     string
	adapter  Checkable
	timeout  time.Duration
	metadata map[string]interface{}
}

// NewAdapterChecker creates a new health checker for an adapter
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

// WithMetadata attaches static metadata (e.g. the redacted URL) to every result.
func (c *AdapterChecker) WithMetadata(metadata map[string]interface{}) *AdapterChecker {
	c.metadata = metadata
	return c
}

// Check performs the health check on the adapter
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	result := CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Metadata:  c.metadata,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = ""
		result.Error = err.Error()
	}
	return result
}

// Name returns the name of the health check
func (c *AdapterChecker) Name() string {
	return c.name
}
