package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
type Transactor struct {
	pool             Pool
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// NewTransactor creates a new Transactor wrapping the connection pool.
// Non-zero timeouts are applied to every transaction with SET LOCAL.
func NewTransactor(pool Pool, lockTimeout, statementTimeout time.Duration) *Transactor {
	return &Transactor{
		pool:             pool,
		lockTimeout:      lockTimeout,
		statementTimeout: statementTimeout,
	}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, wrapErr("begin transaction", err)
	}

	if err := t.applyTimeout(ctx, tx, "lock_timeout", t.lockTimeout); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if err := t.applyTimeout(ctx, tx, "statement_timeout", t.statementTimeout); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

func (t *Transactor) applyTimeout(ctx context.Context, tx pgx.Tx, setting string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	// SET does not accept bind parameters.
	query := fmt.Sprintf("SET LOCAL %s = '%dms'", setting, d.Milliseconds())
	if _, err := tx.Exec(ctx, query); err != nil {
		return wrapErr("set "+setting, err)
	}
	return nil
}
