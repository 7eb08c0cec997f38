package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const listingColumns = `id, seller_id, item, category, amount, original_amount, price, currency,
		status, purchases, version, listed_at, updated_at, completed_at`

// ListingRepo implements ports.ListingRepository.
// Purchases are stored inline as a JSONB array on the listing row.
type ListingRepo struct {
	pool Pool
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(pool Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

// Create inserts a new listing within a database transaction.
func (r *ListingRepo) Create(ctx context.Context, tx pgx.Tx, l *domain.Listing) error {
	purchases, err := encodePurchases(l.Purchases)
	if err != nil {
		return err
	}

	query := `INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = tx.Exec(ctx, query,
		l.ID, l.SellerID, l.Item, l.Category, l.Amount, l.OriginalAmount, l.Price, l.Currency,
		l.Status, purchases, l.Version, l.ListedAt, l.UpdatedAt, l.CompletedAt,
	)
	if err != nil {
		return wrapErr("insert listing", err)
	}
	return nil
}

// GetByID fetches a listing by UUID (without locking).
func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	return scanListing(r.pool.QueryRow(ctx, query, id), "get listing by id")
}

// GetByIDForUpdate fetches a listing by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *ListingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`

	return scanListing(tx.QueryRow(ctx, query, id), "get listing for update")
}

// Update writes the mutable part of the listing guarded by its version.
func (r *ListingRepo) Update(ctx context.Context, tx pgx.Tx, l *domain.Listing) error {
	purchases, err := encodePurchases(l.Purchases)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `UPDATE listings SET amount = $1, status = $2, purchases = $3,
		version = version + 1, updated_at = $4, completed_at = $5
		WHERE id = $6 AND version = $7`

	tag, err := tx.Exec(ctx, query,
		l.Amount, l.Status, purchases, now, l.CompletedAt, l.ID, l.Version,
	)
	if err != nil {
		return wrapErr("update listing", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update listing %s: %w", l.ID, ports.ErrVersionConflict)
	}
	l.Version++
	l.UpdatedAt = now
	return nil
}

// List fetches listings with filtering and pagination, newest first.
func (r *ListingRepo) List(ctx context.Context, params ports.ListingListParams) ([]domain.Listing, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.SellerID != nil {
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *params.SellerID)
		argIdx++
	}
	if params.Item != nil {
		conditions = append(conditions, fmt.Sprintf("item = $%d", argIdx))
		args = append(args, *params.Item)
		argIdx++
	}
	if params.Currency != nil {
		conditions = append(conditions, fmt.Sprintf("currency = $%d", argIdx))
		args = append(args, *params.Currency)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("listed_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("listed_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, wrapErr("count listings", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM listings %s ORDER BY listed_at DESC, id LIMIT $%d OFFSET $%d`,
		listingColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, wrapErr("list listings", err)
	}
	defer rows.Close()

	listings := make([]domain.Listing, 0, params.PageSize)
	for rows.Next() {
		l, err := scanListing(rows, "scan listing row")
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapErr("iterate listing rows", err)
	}
	return listings, total, nil
}

func scanListing(row pgx.Row, op string) (*domain.Listing, error) {
	l := &domain.Listing{}
	var purchases []byte
	err := row.Scan(
		&l.ID, &l.SellerID, &l.Item, &l.Category, &l.Amount, &l.OriginalAmount, &l.Price, &l.Currency,
		&l.Status, &purchases, &l.Version, &l.ListedAt, &l.UpdatedAt, &l.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	l.Purchases = []domain.Purchase{}
	if len(purchases) > 0 {
		if err := json.Unmarshal(purchases, &l.Purchases); err != nil {
			return nil, fmt.Errorf("%s: decode purchases: %w", op, err)
		}
	}
	return l, nil
}

func encodePurchases(p []domain.Purchase) ([]byte, error) {
	if p == nil {
		p = []domain.Purchase{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode purchases: %w", err)
	}
	return b, nil
}
