package handler

import (
	"idle-market/internal/adapter/http/dto"
	"idle-market/internal/adapter/http/middleware"
	"idle-market/internal/core/ports"
	"idle-market/pkg/apperror"
	"idle-market/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the caller's own ledger and listings.
type AccountHandler struct {
	querySvc ports.MarketQueryService
	listings *ListingHandler
}

// NewAccountHandler creates a new AccountHandler. Listing filters are
// parsed the same way as the market browse endpoint.
func NewAccountHandler(querySvc ports.MarketQueryService, listings *ListingHandler) *AccountHandler {
	return &AccountHandler{querySvc: querySvc, listings: listings}
}

// Me handles GET /api/v1/accounts/me.
func (h *AccountHandler) Me(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	account, err := h.querySvc.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Account retrieved", dto.NewAccountResponse(account))
}

// MyListings handles GET /api/v1/accounts/me/listings.
func (h *AccountHandler) MyListings(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	params, ok := h.listings.bindListQuery(c)
	if !ok {
		return
	}
	params.SellerID = &accountID

	listings, total, err := h.querySvc.GetUserListings(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Listings retrieved", dto.NewListingListResponse(listings, total, params.Page, params.PageSize))
}
