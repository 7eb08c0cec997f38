//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

package ports

import (
	"context"
	"time"

	"idle-market/internal/core/domain"

	"github.com/google/uuid"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ListingCache is a read-through cache for single listings.
type ListingCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) // nil, nil on miss
	Set(ctx context.Context, listing *domain.Listing, ttl time.Duration) error
	// Invalidate drops the snapshot after a write committed version; older
	// snapshots are refused by Set from then on.
	Invalidate(ctx context.Context, id uuid.UUID, version int64) error
}

// EventPublisher delivers committed listing events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ListingEvent) error
}

// ItemCatalog resolves the inventory bucket an item belongs to.
type ItemCatalog interface {
	Category(item string) (domain.ItemCategory, bool)
}

// --- Service Ports (Business Logic) ---

// ListingService is the trade settlement engine. Every method runs in a single
// store transaction: either all of its effects commit or none do.
type ListingService interface {
	CreateListing(ctx context.Context, req CreateListingRequest) (*domain.Listing, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*domain.Listing, error)
	Claim(ctx context.Context, listingID, sellerID uuid.UUID) (*domain.Listing, error)
	Cancel(ctx context.Context, listingID, sellerID uuid.UUID) (*domain.Listing, error)
}

// CreateListingRequest holds input for listing creation.
type CreateListingRequest struct {
	SellerID uuid.UUID
	Item     string
	Amount   int64
	Price    int64
	Currency string
}

// PurchaseRequest holds input for buying from a listing.
type PurchaseRequest struct {
	ListingID      uuid.UUID
	BuyerID        uuid.UUID
	Amount         int64
	IdempotencyKey string // optional
}

// MarketQueryService serves the read side of the market.
type MarketQueryService interface {
	GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	GetListings(ctx context.Context, params ListingListParams) ([]domain.Listing, int64, error)
	GetUserListings(ctx context.Context, params ListingListParams) ([]domain.Listing, int64, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// AuditService records audit trail entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
