package handler

import (
	"context"
	"errors"
	"net/http"

	"idle-market/internal/adapter/http/dto"
	"idle-market/internal/adapter/http/middleware"
	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"
	"idle-market/pkg/apperror"
	"idle-market/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey carries the optional client retry key on purchases.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 64

// Paging mirrors the query service's page-size bounds so responses echo
// the page that was actually served.
type Paging struct {
	DefaultPageSize int
	MaxPageSize     int
}

func (p Paging) normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = p.DefaultPageSize
	}
	if p.MaxPageSize > 0 && size > p.MaxPageSize {
		size = p.MaxPageSize
	}
	return page, size
}

// ListingHandler handles the market endpoints.
type ListingHandler struct {
	listingSvc ports.ListingService
	querySvc   ports.MarketQueryService
	paging     Paging
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listingSvc ports.ListingService, querySvc ports.MarketQueryService, paging Paging) *ListingHandler {
	return &ListingHandler{listingSvc: listingSvc, querySvc: querySvc, paging: paging}
}

// Create handles POST /api/v1/listings.
func (h *ListingHandler) Create(c *gin.Context) {
	sellerID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	listing, err := h.listingSvc.CreateListing(c.Request.Context(), ports.CreateListingRequest{
		SellerID: sellerID,
		Item:     req.Item,
		Amount:   req.Amount,
		Price:    req.Price,
		Currency: req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxListingID, listing.ID.String())
	response.OK(c, "Listing created", dto.NewListingResponse(listing))
}

// List handles GET /api/v1/listings.
func (h *ListingHandler) List(c *gin.Context) {
	params, ok := h.bindListQuery(c)
	if !ok {
		return
	}

	listings, total, err := h.querySvc.GetListings(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Listings retrieved", dto.NewListingListResponse(listings, total, params.Page, params.PageSize))
}

// Get handles GET /api/v1/listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := listingID(c)
	if !ok {
		return
	}

	listing, err := h.querySvc.GetListing(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Listing retrieved", dto.NewListingResponse(listing))
}

// Purchase handles POST /api/v1/listings/:id/purchase.
func (h *ListingHandler) Purchase(c *gin.Context) {
	buyerID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	id, ok := listingID(c)
	if !ok {
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	if key != "" && (len(key) > maxIdempotencyKeyLen || !dto.IsSafeID(key)) {
		response.Error(c, apperror.Validation("malformed Idempotency-Key header"))
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	listing, err := h.listingSvc.Purchase(c.Request.Context(), ports.PurchaseRequest{
		ListingID:      id,
		BuyerID:        buyerID,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Purchase completed", dto.NewListingResponse(listing))
}

// Claim handles POST /api/v1/listings/:id/claim.
func (h *ListingHandler) Claim(c *gin.Context) {
	h.sellerAction(c, h.listingSvc.Claim, "Proceeds claimed")
}

// Cancel handles POST /api/v1/listings/:id/cancel.
func (h *ListingHandler) Cancel(c *gin.Context) {
	h.sellerAction(c, h.listingSvc.Cancel, "Listing cancelled")
}

func (h *ListingHandler) sellerAction(
	c *gin.Context,
	action func(ctx context.Context, listingID, sellerID uuid.UUID) (*domain.Listing, error),
	message string,
) {
	sellerID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	id, ok := listingID(c)
	if !ok {
		return
	}

	listing, err := action(c.Request.Context(), id, sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, message, dto.NewListingResponse(listing))
}

// bindListQuery parses the shared listing filters. It writes the error
// envelope itself and reports false on bad input.
func (h *ListingHandler) bindListQuery(c *gin.Context) (ports.ListingListParams, bool) {
	var q dto.ListListingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return ports.ListingListParams{}, false
	}

	params := ports.ListingListParams{
		Item:     q.Item,
		Currency: q.Currency,
		From:     q.From,
		To:       q.To,
	}
	params.Page, params.PageSize = h.paging.normalize(q.Page, q.PageSize)

	if q.SellerID != nil {
		id, err := uuid.Parse(*q.SellerID)
		if err != nil {
			response.Error(c, apperror.Validation("seller_id must be a UUID"))
			return ports.ListingListParams{}, false
		}
		params.SellerID = &id
	}
	if q.Status != nil {
		status := domain.ListingStatus(*q.Status)
		params.Status = &status
	}
	return params, true
}

func listingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("listing id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// bindError maps a binding failure. Item and currency ids are checked by the
// safe_id rule during binding, so no post-bind cleanup is needed.
func bindError(err error) *apperror.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ErrBodyTooLarge()
	}
	return apperror.Validation(err.Error())
}
