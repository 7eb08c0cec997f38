package service

import (
	"context"
	"fmt"
	"time"

	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"
	"idle-market/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QuerySettings bounds pagination and single-listing caching.
type QuerySettings struct {
	DefaultPageSize int
	MaxPageSize     int
	ListingCacheTTL time.Duration
}

// MarketQueryServiceImpl implements ports.MarketQueryService.
type MarketQueryServiceImpl struct {
	accounts ports.AccountRepository
	listings ports.ListingRepository
	cache    ports.ListingCache
	settings QuerySettings
	log      zerolog.Logger
}

// NewMarketQueryService creates a new MarketQueryServiceImpl.
func NewMarketQueryService(
	accounts ports.AccountRepository,
	listings ports.ListingRepository,
	cache ports.ListingCache,
	settings QuerySettings,
	log zerolog.Logger,
) *MarketQueryServiceImpl {
	if settings.DefaultPageSize <= 0 {
		settings.DefaultPageSize = 20
	}
	if settings.MaxPageSize < settings.DefaultPageSize {
		settings.MaxPageSize = settings.DefaultPageSize
	}
	return &MarketQueryServiceImpl{
		accounts: accounts,
		listings: listings,
		cache:    cache,
		settings: settings,
		log:      log,
	}
}

// GetListing reads one listing through the cache.
func (s *MarketQueryServiceImpl) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("listing_id", id.String()).Msg("listing cache read failed, falling through to DB")
	}
	if cached != nil {
		return cached, nil
	}

	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get listing: %w", err))
	}
	if listing == nil {
		return nil, apperror.ErrNotFound("listing")
	}

	if s.settings.ListingCacheTTL > 0 {
		if err := s.cache.Set(ctx, listing, s.settings.ListingCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("listing_id", id.String()).Msg("failed to cache listing")
		}
	}
	return listing, nil
}

// GetListings browses the market. Status defaults to ACTIVE.
func (s *MarketQueryServiceImpl) GetListings(ctx context.Context, params ports.ListingListParams) ([]domain.Listing, int64, error) {
	if params.Status == nil {
		active := domain.ListingStatusActive
		params.Status = &active
	}
	return s.list(ctx, params)
}

// GetUserListings lists one seller's listings in any status unless a status is given.
func (s *MarketQueryServiceImpl) GetUserListings(ctx context.Context, params ports.ListingListParams) ([]domain.Listing, int64, error) {
	if params.SellerID == nil {
		return nil, 0, apperror.Validation("seller id is required")
	}
	return s.list(ctx, params)
}

// GetAccount returns the account with its balance, spend counters and inventory.
func (s *MarketQueryServiceImpl) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

func (s *MarketQueryServiceImpl) list(ctx context.Context, params ports.ListingListParams) ([]domain.Listing, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown status %q", *params.Status))
	}
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, apperror.Validation("from must not be after to")
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = s.settings.DefaultPageSize
	}
	if params.PageSize > s.settings.MaxPageSize {
		params.PageSize = s.settings.MaxPageSize
	}

	listings, total, err := s.listings.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list listings: %w", err))
	}
	return listings, total, nil
}
