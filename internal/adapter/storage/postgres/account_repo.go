package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, balance, total_spent, period_spent, food, items, version, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
// The food and general inventory buckets live in two JSONB columns.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account into the database.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	food, items, err := encodeInventory(a)
	if err != nil {
		return err
	}

	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.pool.Exec(ctx, query,
		a.ID, a.CurrentBalance, a.TotalSpent, a.PeriodSpent,
		food, items, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert account", err)
	}
	return nil
}

// GetByID fetches an account by its UUID (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccount(r.pool.QueryRow(ctx, query, id), "get account by id")
}

// GetByIDForUpdate fetches an account by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	return scanAccount(tx.QueryRow(ctx, query, id), "get account for update")
}

// Update writes the full account aggregate guarded by its version.
func (r *AccountRepo) Update(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	food, items, err := encodeInventory(a)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `UPDATE accounts SET balance = $1, total_spent = $2, period_spent = $3,
		food = $4, items = $5, version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8`

	tag, err := tx.Exec(ctx, query,
		a.CurrentBalance, a.TotalSpent, a.PeriodSpent,
		food, items, now, a.ID, a.Version,
	)
	if err != nil {
		return wrapErr("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update account %s: %w", a.ID, ports.ErrVersionConflict)
	}
	a.Version++
	a.UpdatedAt = now
	return nil
}

func scanAccount(row pgx.Row, op string) (*domain.Account, error) {
	a := &domain.Account{}
	var food, items []byte
	err := row.Scan(
		&a.ID, &a.CurrentBalance, &a.TotalSpent, &a.PeriodSpent,
		&food, &items, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	if err := decodeInventory(a, food, items); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func encodeInventory(a *domain.Account) ([]byte, []byte, error) {
	food, err := encodeHoldings(a.Inventory[domain.ItemCategoryFood])
	if err != nil {
		return nil, nil, fmt.Errorf("encode food inventory: %w", err)
	}
	items, err := encodeHoldings(a.Inventory[domain.ItemCategoryGeneral])
	if err != nil {
		return nil, nil, fmt.Errorf("encode item inventory: %w", err)
	}
	return food, items, nil
}

func encodeHoldings(h domain.Holdings) ([]byte, error) {
	if h == nil {
		h = domain.Holdings{}
	}
	return json.Marshal(h)
}

func decodeInventory(a *domain.Account, food, items []byte) error {
	a.Inventory = map[domain.ItemCategory]domain.Holdings{
		domain.ItemCategoryFood:    {},
		domain.ItemCategoryGeneral: {},
	}
	if len(food) > 0 {
		h := domain.Holdings{}
		if err := json.Unmarshal(food, &h); err != nil {
			return fmt.Errorf("decode food inventory: %w", err)
		}
		a.Inventory[domain.ItemCategoryFood] = h
	}
	if len(items) > 0 {
		h := domain.Holdings{}
		if err := json.Unmarshal(items, &h); err != nil {
			return fmt.Errorf("decode item inventory: %w", err)
		}
		a.Inventory[domain.ItemCategoryGeneral] = h
	}
	return nil
}
