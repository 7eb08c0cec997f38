package dto

import (
	"time"

	"idle-market/internal/core/domain"

	"github.com/google/uuid"
)

// --- Listing DTOs ---

// CreateListingRequest is the body of POST /api/v1/listings.
type CreateListingRequest struct {
	Item     string `json:"item" binding:"required,max=64,safe_id"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Price    int64  `json:"price" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"required,max=16,safe_id"`
}

// PurchaseRequest is the body of POST /api/v1/listings/:id/purchase.
type PurchaseRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// ListListingsQuery holds the market browse filters.
type ListListingsQuery struct {
	Item     *string    `form:"item" binding:"omitempty,max=64,safe_id"`
	Currency *string    `form:"currency" binding:"omitempty,max=16,safe_id"`
	SellerID *string    `form:"seller_id" binding:"omitempty,uuid"`
	Status   *string    `form:"status" binding:"omitempty,oneof=ACTIVE SOLD COMPLETED"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1"`
}

// PurchaseView is the public shape of one purchase record.
type PurchaseView struct {
	BuyerID     uuid.UUID  `json:"buyer_id"`
	Amount      int64      `json:"amount"`
	PurchasedAt time.Time  `json:"purchased_at"`
	Claimed     bool       `json:"claimed"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
}

// ListingResponse is the public shape of a listing.
type ListingResponse struct {
	ID              uuid.UUID      `json:"id"`
	SellerID        uuid.UUID      `json:"seller_id"`
	Item            string         `json:"item"`
	Category        string         `json:"category"`
	Amount          int64          `json:"amount"`
	OriginalAmount  int64          `json:"original_amount"`
	Price           int64          `json:"price"`
	Currency        string         `json:"currency"`
	Status          string         `json:"status"`
	UnclaimedAmount int64          `json:"unclaimed_amount"`
	Purchases       []PurchaseView `json:"purchases"`
	ListedAt        time.Time      `json:"listed_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// ListingListResponse is a paginated page of listings.
type ListingListResponse struct {
	Items      []ListingResponse `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// --- Account DTOs ---

// AccountResponse is the caller's own ledger state.
type AccountResponse struct {
	ID             uuid.UUID        `json:"id"`
	CurrentBalance int64            `json:"current_balance"`
	TotalSpent     int64            `json:"total_spent"`
	PeriodSpent    int64            `json:"period_spent"`
	Food           map[string]int64 `json:"food"`
	Items          map[string]int64 `json:"items"`
}

// NewListingResponse converts a domain listing.
func NewListingResponse(l *domain.Listing) ListingResponse {
	purchases := make([]PurchaseView, 0, len(l.Purchases))
	for _, p := range l.Purchases {
		purchases = append(purchases, PurchaseView{
			BuyerID:     p.BuyerID,
			Amount:      p.Amount,
			PurchasedAt: p.PurchasedAt,
			Claimed:     p.Claimed,
			ClaimedAt:   p.ClaimedAt,
		})
	}
	return ListingResponse{
		ID:              l.ID,
		SellerID:        l.SellerID,
		Item:            l.Item,
		Category:        string(l.Category),
		Amount:          l.Amount,
		OriginalAmount:  l.OriginalAmount,
		Price:           l.Price,
		Currency:        l.Currency,
		Status:          string(l.Status),
		UnclaimedAmount: l.UnclaimedAmount(),
		Purchases:       purchases,
		ListedAt:        l.ListedAt,
		UpdatedAt:       l.UpdatedAt,
		CompletedAt:     l.CompletedAt,
	}
}

// NewListingListResponse builds a page, computing total pages from pageSize.
func NewListingListResponse(listings []domain.Listing, total int64, page, pageSize int) ListingListResponse {
	items := make([]ListingResponse, 0, len(listings))
	for i := range listings {
		items = append(items, NewListingResponse(&listings[i]))
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListingListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// NewAccountResponse converts a domain account.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		CurrentBalance: a.CurrentBalance,
		TotalSpent:     a.TotalSpent,
		PeriodSpent:    a.PeriodSpent,
		Food:           copyHoldings(a.Inventory[domain.ItemCategoryFood]),
		Items:          copyHoldings(a.Inventory[domain.ItemCategoryGeneral]),
	}
}

func copyHoldings(h domain.Holdings) map[string]int64 {
	out := make(map[string]int64, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
