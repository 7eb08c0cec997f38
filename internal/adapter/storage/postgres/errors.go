package postgres

import (
	"errors"
	"fmt"

	"idle-market/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes that mean a concurrent writer won.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// wrapErr annotates err with op and folds contention codes into the port sentinels.
func wrapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, ports.ErrDuplicateKey, pgErr.ConstraintName)
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%s: %w: %s", op, ports.ErrVersionConflict, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
