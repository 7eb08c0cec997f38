package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"idle-market/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errSQLUnsupported = errors.New("memory store does not execute SQL")

// Tx is the pgx.Tx handed out by Store.Begin. Repositories stage writes on it;
// nothing is visible to other readers until Commit.
type Tx struct {
	store *Store

	once        sync.Once
	closed      bool
	accounts    map[uuid.UUID]*domain.Account
	listings    map[uuid.UUID]*domain.Listing
	idempotency map[string]*domain.IdempotencyLog
}

func newTx(s *Store) *Tx {
	return &Tx{
		store:       s,
		accounts:    make(map[uuid.UUID]*domain.Account),
		listings:    make(map[uuid.UUID]*domain.Listing),
		idempotency: make(map[string]*domain.IdempotencyLog),
	}
}

func (t *Tx) finish(commit bool) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.once.Do(func() {
		t.closed = true
		if commit {
			t.store.apply(t)
		}
		t.store.release()
	})
	return nil
}

// Commit publishes staged writes and frees the store for the next transaction.
func (t *Tx) Commit(ctx context.Context) error { return t.finish(true) }

// Rollback discards staged writes. It returns pgx.ErrTxClosed after Commit.
func (t *Tx) Rollback(ctx context.Context) error { return t.finish(false) }

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, fmt.Errorf("nested transaction: %w", errSQLUnsupported)
}

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errSQLUnsupported
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *Tx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errSQLUnsupported
}

func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errSQLUnsupported
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errSQLUnsupported
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errSQLUnsupported }

func asTx(s *Store, tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, errors.New("transaction was not started by this memory store")
	}
	if t.closed {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}
