package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"
	"idle-market/internal/metrics"
	"idle-market/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const defaultIdempotencyTTL = 24 * time.Hour

const (
	opCreateListing = "create_listing"
	opPurchase      = "purchase"
	opClaim         = "claim"
	opCancel        = "cancel"
)

// ListingSettings holds the engine's tunables.
type ListingSettings struct {
	Currencies     []string
	IdempotencyTTL time.Duration
}

// ListingServiceImpl implements ports.ListingService.
type ListingServiceImpl struct {
	accounts     ports.AccountRepository
	listings     ports.ListingRepository
	idempRepo    ports.IdempotencyRepository
	idempCache   ports.IdempotencyCache
	listingCache ports.ListingCache
	events       ports.EventPublisher
	catalog      ports.ItemCatalog
	transactor   ports.DBTransactor
	settings     ListingSettings
	log          zerolog.Logger
}

// NewListingService creates a new ListingServiceImpl.
func NewListingService(
	accounts ports.AccountRepository,
	listings ports.ListingRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	listingCache ports.ListingCache,
	events ports.EventPublisher,
	catalog ports.ItemCatalog,
	transactor ports.DBTransactor,
	settings ListingSettings,
	log zerolog.Logger,
) *ListingServiceImpl {
	if settings.IdempotencyTTL <= 0 {
		settings.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &ListingServiceImpl{
		accounts:     accounts,
		listings:     listings,
		idempRepo:    idempRepo,
		idempCache:   idempCache,
		listingCache: listingCache,
		events:       events,
		catalog:      catalog,
		transactor:   transactor,
		settings:     settings,
		log:          log,
	}
}

// CreateListing moves amount of item out of the seller's inventory into a new ACTIVE listing.
func (s *ListingServiceImpl) CreateListing(ctx context.Context, req ports.CreateListingRequest) (_ *domain.Listing, err error) {
	defer s.observe(opCreateListing, time.Now(), &err)

	if req.Amount < 1 {
		return nil, apperror.Validation("amount must be at least 1")
	}
	if req.Price < 1 {
		return nil, apperror.Validation("price must be at least 1")
	}
	if _, ok := domain.CostOf(req.Amount, req.Price); !ok {
		return nil, apperror.Validation("amount * price exceeds the supported range")
	}
	if !slices.Contains(s.settings.Currencies, req.Currency) {
		return nil, apperror.Validation(fmt.Sprintf("unsupported currency %q", req.Currency))
	}
	category, ok := s.catalog.Category(req.Item)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("unknown item %q", req.Item))
	}

	txCtx := context.WithoutCancel(ctx)
	dbTx, err := s.transactor.Begin(txCtx)
	if err != nil {
		return nil, txErr("begin tx", err)
	}
	defer dbTx.Rollback(txCtx) //nolint:errcheck

	seller, err := s.accounts.GetByIDForUpdate(txCtx, dbTx, req.SellerID)
	if err != nil {
		return nil, txErr("lock seller", err)
	}
	if seller == nil {
		return nil, apperror.ErrNotFound("account")
	}

	if err := seller.DebitItem(category, req.Item, req.Amount); err != nil {
		return nil, domainErr(err)
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:             uuid.New(),
		SellerID:       req.SellerID,
		Item:           req.Item,
		Category:       category,
		Amount:         req.Amount,
		OriginalAmount: req.Amount,
		Price:          req.Price,
		Currency:       req.Currency,
		Status:         domain.ListingStatusActive,
		Purchases:      []domain.Purchase{},
		ListedAt:       now,
		UpdatedAt:      now,
	}

	if err := s.accounts.Update(txCtx, dbTx, seller); err != nil {
		return nil, txErr("update seller", err)
	}
	if err := s.listings.Create(txCtx, dbTx, listing); err != nil {
		return nil, txErr("create listing", err)
	}

	if err := dbTx.Commit(txCtx); err != nil {
		return nil, txErr("commit tx", err)
	}

	s.publish(txCtx, domain.NewListingEvent(domain.EventListingCreated, listing, req.SellerID, req.Amount, 0))

	s.log.Info().
		Str("listing_id", listing.ID.String()).
		Str("seller_id", req.SellerID.String()).
		Str("item", req.Item).
		Int64("amount", req.Amount).
		Int64("price", req.Price).
		Msg("listing created")

	return listing, nil
}

// Purchase buys purchaseAmount from an ACTIVE listing. The buyer pays amount*price
// and receives the items immediately; the seller is paid on claim.
func (s *ListingServiceImpl) Purchase(ctx context.Context, req ports.PurchaseRequest) (_ *domain.Listing, err error) {
	defer s.observe(opPurchase, time.Now(), &err)

	if req.Amount < 1 {
		return nil, apperror.Validation("purchase amount must be at least 1")
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildPurchaseIdempotencyKey(req.BuyerID, req.IdempotencyKey)
		replay, err := s.replay(ctx, idempKey, req)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	txCtx := context.WithoutCancel(ctx)
	dbTx, err := s.transactor.Begin(txCtx)
	if err != nil {
		return nil, txErr("begin tx", err)
	}
	defer dbTx.Rollback(txCtx) //nolint:errcheck

	// Lock order: listing, then account.
	listing, err := s.listings.GetByIDForUpdate(txCtx, dbTx, req.ListingID)
	if err != nil {
		return nil, txErr("lock listing", err)
	}
	if listing == nil {
		return nil, apperror.ErrNotFound("listing")
	}
	if !listing.IsActive() {
		return nil, apperror.ErrNotActive()
	}
	if req.BuyerID == listing.SellerID {
		return nil, apperror.ErrSelfTrade()
	}
	if req.Amount > listing.Amount {
		return nil, apperror.ErrInsufficientQuantity()
	}
	cost, ok := domain.CostOf(req.Amount, listing.Price)
	if !ok {
		return nil, apperror.Validation("purchase cost exceeds the supported range")
	}

	buyer, err := s.accounts.GetByIDForUpdate(txCtx, dbTx, req.BuyerID)
	if err != nil {
		return nil, txErr("lock buyer", err)
	}
	if buyer == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if err := buyer.Spend(cost); err != nil {
		return nil, domainErr(err)
	}
	if err := buyer.CreditItem(listing.Category, listing.Item, req.Amount); err != nil {
		return nil, domainErr(err)
	}

	listing.ApplyPurchase(req.BuyerID, req.Amount, time.Now().UTC())

	if err := s.listings.Update(txCtx, dbTx, listing); err != nil {
		return nil, txErr("update listing", err)
	}
	if err := s.accounts.Update(txCtx, dbTx, buyer); err != nil {
		return nil, txErr("update buyer", err)
	}

	var entryJSON []byte
	if idempKey != "" {
		respJSON, err := json.Marshal(listing)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		entry := &domain.IdempotencyLog{
			Key:          idempKey,
			ListingID:    listing.ID,
			Amount:       req.Amount,
			ResponseJSON: respJSON,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.idempRepo.Create(txCtx, dbTx, entry); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				return nil, apperror.ErrDuplicateRequest()
			}
			return nil, txErr("save idempotency log", err)
		}
		if entryJSON, err = json.Marshal(entry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(txCtx); err != nil {
		return nil, txErr("commit tx", err)
	}

	if idempKey != "" {
		if err := s.idempCache.Set(txCtx, idempKey, entryJSON, s.settings.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}
	s.invalidate(txCtx, listing)
	s.publish(txCtx, domain.NewListingEvent(domain.EventListingPurchased, listing, req.BuyerID, req.Amount, 0))
	metrics.TradedQuantity.WithLabelValues(string(listing.Category)).Add(float64(req.Amount))

	s.log.Info().
		Str("listing_id", listing.ID.String()).
		Str("buyer_id", req.BuyerID.String()).
		Int64("amount", req.Amount).
		Int64("cost", cost).
		Str("status", string(listing.Status)).
		Msg("purchase settled")

	return listing, nil
}

// Claim pays the seller for every purchase not yet claimed.
func (s *ListingServiceImpl) Claim(ctx context.Context, listingID, sellerID uuid.UUID) (_ *domain.Listing, err error) {
	defer s.observe(opClaim, time.Now(), &err)

	txCtx := context.WithoutCancel(ctx)
	dbTx, err := s.transactor.Begin(txCtx)
	if err != nil {
		return nil, txErr("begin tx", err)
	}
	defer dbTx.Rollback(txCtx) //nolint:errcheck

	listing, err := s.lockOwned(txCtx, dbTx, listingID, sellerID)
	if err != nil {
		return nil, err
	}
	if listing.IsCompleted() {
		return nil, apperror.ErrNotActive()
	}

	now := time.Now().UTC()
	claimed := listing.SettleClaims(now)
	if claimed == 0 {
		return nil, apperror.ErrNothingToClaim()
	}
	proceeds, ok := domain.CostOf(claimed, listing.Price)
	if !ok {
		return nil, apperror.Validation("claim proceeds exceed the supported range")
	}

	seller, err := s.accounts.GetByIDForUpdate(txCtx, dbTx, sellerID)
	if err != nil {
		return nil, txErr("lock seller", err)
	}
	if seller == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if err := seller.Earn(proceeds); err != nil {
		return nil, domainErr(err)
	}

	if listing.Amount == 0 && listing.UnclaimedAmount() == 0 {
		listing.Complete(now)
	}

	if err := s.listings.Update(txCtx, dbTx, listing); err != nil {
		return nil, txErr("update listing", err)
	}
	if err := s.accounts.Update(txCtx, dbTx, seller); err != nil {
		return nil, txErr("update seller", err)
	}

	if err := dbTx.Commit(txCtx); err != nil {
		return nil, txErr("commit tx", err)
	}

	s.invalidate(txCtx, listing)
	s.publish(txCtx, domain.NewListingEvent(domain.EventListingClaimed, listing, sellerID, claimed, proceeds))
	metrics.SettledProceeds.WithLabelValues(listing.Currency).Add(float64(proceeds))

	s.log.Info().
		Str("listing_id", listing.ID.String()).
		Str("seller_id", sellerID.String()).
		Int64("claimed", claimed).
		Int64("proceeds", proceeds).
		Str("status", string(listing.Status)).
		Msg("proceeds claimed")

	return listing, nil
}

// Cancel closes an ACTIVE listing. Outstanding proceeds are paid out and the
// unsold quantity goes back to the seller's inventory. Amount keeps the
// returned quantity as the record of what was unsold.
func (s *ListingServiceImpl) Cancel(ctx context.Context, listingID, sellerID uuid.UUID) (_ *domain.Listing, err error) {
	defer s.observe(opCancel, time.Now(), &err)

	txCtx := context.WithoutCancel(ctx)
	dbTx, err := s.transactor.Begin(txCtx)
	if err != nil {
		return nil, txErr("begin tx", err)
	}
	defer dbTx.Rollback(txCtx) //nolint:errcheck

	listing, err := s.lockOwned(txCtx, dbTx, listingID, sellerID)
	if err != nil {
		return nil, err
	}
	if !listing.IsActive() {
		return nil, apperror.ErrNotActive()
	}

	now := time.Now().UTC()
	claimed := listing.SettleClaims(now)
	proceeds, ok := domain.CostOf(claimed, listing.Price)
	if !ok {
		return nil, apperror.Validation("claim proceeds exceed the supported range")
	}

	seller, err := s.accounts.GetByIDForUpdate(txCtx, dbTx, sellerID)
	if err != nil {
		return nil, txErr("lock seller", err)
	}
	if seller == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if proceeds > 0 {
		if err := seller.Earn(proceeds); err != nil {
			return nil, domainErr(err)
		}
	}
	returned := listing.Amount
	if returned > 0 {
		if err := seller.CreditItem(listing.Category, listing.Item, returned); err != nil {
			return nil, domainErr(err)
		}
	}
	listing.Complete(now)

	if err := s.listings.Update(txCtx, dbTx, listing); err != nil {
		return nil, txErr("update listing", err)
	}
	if err := s.accounts.Update(txCtx, dbTx, seller); err != nil {
		return nil, txErr("update seller", err)
	}

	if err := dbTx.Commit(txCtx); err != nil {
		return nil, txErr("commit tx", err)
	}

	s.invalidate(txCtx, listing)
	s.publish(txCtx, domain.NewListingEvent(domain.EventListingCancelled, listing, sellerID, returned, proceeds))
	if proceeds > 0 {
		metrics.SettledProceeds.WithLabelValues(listing.Currency).Add(float64(proceeds))
	}

	s.log.Info().
		Str("listing_id", listing.ID.String()).
		Str("seller_id", sellerID.String()).
		Int64("returned", returned).
		Int64("proceeds", proceeds).
		Msg("listing cancelled")

	return listing, nil
}

func (s *ListingServiceImpl) lockOwned(ctx context.Context, dbTx pgx.Tx, listingID, sellerID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listings.GetByIDForUpdate(ctx, dbTx, listingID)
	if err != nil {
		return nil, txErr("lock listing", err)
	}
	if listing == nil {
		return nil, apperror.ErrNotFound("listing")
	}
	if listing.SellerID != sellerID {
		return nil, apperror.ErrNotOwner()
	}
	return listing, nil
}

// replay returns the recorded listing for a purchase key, checking Redis before
// the DB log. A key already spent on a different listing or amount is rejected.
func (s *ListingServiceImpl) replay(ctx context.Context, key string, req ports.PurchaseRequest) (*domain.Listing, error) {
	entry, err := s.recordedPurchase(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}
	if !entry.Matches(req.ListingID, req.Amount) {
		s.log.Warn().
			Str("key", key).
			Str("recorded_listing_id", entry.ListingID.String()).
			Str("listing_id", req.ListingID.String()).
			Msg("idempotency key reused for a different purchase")
		return nil, apperror.ErrIdempotencyKeyReused()
	}
	metrics.IdempotentReplays.Inc()
	return unmarshalListing(entry.ResponseJSON)
}

func (s *ListingServiceImpl) recordedPurchase(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		entry := &domain.IdempotencyLog{}
		if err := json.Unmarshal(cached, entry); err == nil {
			return entry, nil
		}
		s.log.Warn().Str("key", key).Msg("unreadable idempotency cache entry, falling through to DB")
	}

	entry, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	return entry, nil
}

func (s *ListingServiceImpl) invalidate(ctx context.Context, l *domain.Listing) {
	if err := s.listingCache.Invalidate(ctx, l.ID, l.Version); err != nil {
		s.log.Warn().Err(err).Str("listing_id", l.ID.String()).Msg("failed to invalidate listing cache")
	}
}

func (s *ListingServiceImpl) publish(ctx context.Context, event domain.ListingEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("type", string(event.Type)).
			Str("listing_id", event.ListingID.String()).
			Msg("failed to publish listing event")
	}
}

func (s *ListingServiceImpl) observe(op string, started time.Time, errp *error) {
	result := metrics.ResultSuccess
	if err := *errp; err != nil {
		result = metrics.ResultError
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Status() == apperror.StatusBadRequest {
			result = metrics.ResultBadRequest
		}
	}
	metrics.ObserveOperation(op, result, started)
}

func unmarshalListing(data []byte) (*domain.Listing, error) {
	l := &domain.Listing{}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached listing: %w", err))
	}
	return l, nil
}

// txErr maps a store failure inside a transaction. Business errors already
// raised as AppError pass through unchanged.
func txErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ErrTransaction(fmt.Errorf("%s: %w", op, err))
}

func domainErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientInventory):
		return apperror.ErrInsufficientInventory()
	case errors.Is(err, domain.ErrInsufficientBalance):
		return apperror.ErrInsufficientBalance()
	case errors.Is(err, domain.ErrInvalidQuantity):
		return apperror.Validation("quantity must be at least 1")
	case errors.Is(err, domain.ErrUnknownCategory):
		return apperror.Validation("unknown item category")
	case errors.Is(err, domain.ErrCreditOverflow):
		return apperror.ErrCreditOverflow()
	default:
		return apperror.InternalError(err)
	}
}
