package ports

import "context"

// HealthChecker is one dependency reported by /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
