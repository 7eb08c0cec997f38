//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

package ports

import (
	"context"
	"errors"
	"time"

	"idle-market/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrVersionConflict is returned by aggregate writes whose version check failed.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicateKey is returned when an idempotency key is already recorded.
	ErrDuplicateKey = errors.New("duplicate key")
)

// AccountRepository defines persistence operations for ledger accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	// Update writes the whole aggregate when the stored version still equals
	// account.Version, then bumps account.Version.
	Update(ctx context.Context, tx pgx.Tx, account *domain.Account) error
}

// ListingRepository defines persistence operations for trade listings.
type ListingRepository interface {
	Create(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Listing, error)
	// Update writes the whole aggregate under the same version rule as AccountRepository.Update.
	Update(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error
	List(ctx context.Context, params ListingListParams) ([]domain.Listing, int64, error)
}

// ListingListParams holds filter + pagination for listing queries.
type ListingListParams struct {
	SellerID *uuid.UUID
	Item     *string
	Currency *string
	Status   *domain.ListingStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
