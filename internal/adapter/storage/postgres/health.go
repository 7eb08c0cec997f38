package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errSchemaMissing = errors.New("market tables missing, run migrations")

// schemaProbe succeeds only when the connection works and the market schema
// has been migrated.
const schemaProbe = `SELECT to_regclass('public.accounts') IS NOT NULL
	AND to_regclass('public.listings') IS NOT NULL`

// HealthCheck reports the database as healthy once the market tables exist.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var ready bool
	if err := h.pool.QueryRow(ctx, schemaProbe).Scan(&ready); err != nil {
		return fmt.Errorf("probe schema: %w", err)
	}
	if !ready {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
