package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ListingStatus represents the lifecycle state of a trade listing.
// Transitions are ACTIVE -> SOLD -> COMPLETED or ACTIVE -> COMPLETED.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "ACTIVE"
	ListingStatusSold      ListingStatus = "SOLD"
	ListingStatusCompleted ListingStatus = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusActive, ListingStatusSold, ListingStatusCompleted:
		return true
	}
	return false
}

// Purchase is one buyer's take from a listing. Records are append-only;
// only Claimed and ClaimedAt change after creation.
type Purchase struct {
	BuyerID     uuid.UUID  `json:"buyer_id"`
	Amount      int64      `json:"amount"`
	PurchasedAt time.Time  `json:"purchased_at"`
	Claimed     bool       `json:"claimed"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
}

// Listing is a seller's offer of a quantity of one item at a fixed unit price.
type Listing struct {
	ID             uuid.UUID     `json:"id"`
	SellerID       uuid.UUID     `json:"seller_id"`
	Item           string        `json:"item"`
	Category       ItemCategory  `json:"category"`
	Amount         int64         `json:"amount"`
	OriginalAmount int64         `json:"original_amount"`
	Price          int64         `json:"price"`
	Currency       string        `json:"currency"`
	Status         ListingStatus `json:"status"`
	Purchases      []Purchase    `json:"purchases"`
	Version        int64         `json:"version"`
	ListedAt       time.Time     `json:"listed_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// IsActive returns true if the listing still accepts purchases.
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// IsCompleted returns true once the listing is archived.
func (l *Listing) IsCompleted() bool {
	return l.Status == ListingStatusCompleted
}

// UnclaimedAmount sums the quantity bought but not yet paid out to the seller.
func (l *Listing) UnclaimedAmount() int64 {
	var total int64
	for _, p := range l.Purchases {
		if !p.Claimed {
			total += p.Amount
		}
	}
	return total
}

// SoldAmount sums every purchase ever made on the listing.
func (l *Listing) SoldAmount() int64 {
	var total int64
	for _, p := range l.Purchases {
		total += p.Amount
	}
	return total
}

// OutstandingProceeds is the currency owed to the seller for unclaimed purchases.
func (l *Listing) OutstandingProceeds() int64 {
	return l.UnclaimedAmount() * l.Price
}

// ApplyPurchase appends a purchase and reduces the remaining amount.
// Callers validate status and quantity first.
func (l *Listing) ApplyPurchase(buyerID uuid.UUID, qty int64, now time.Time) {
	l.Purchases = append(l.Purchases, Purchase{
		BuyerID:     buyerID,
		Amount:      qty,
		PurchasedAt: now,
	})
	l.Amount -= qty
	if l.Amount == 0 {
		l.Status = ListingStatusSold
	}
	l.UpdatedAt = now
}

// SettleClaims marks every unclaimed purchase as claimed and returns the claimed quantity.
func (l *Listing) SettleClaims(now time.Time) int64 {
	var claimed int64
	for i := range l.Purchases {
		p := &l.Purchases[i]
		if p.Claimed {
			continue
		}
		claimed += p.Amount
		p.Claimed = true
		ts := now
		p.ClaimedAt = &ts
	}
	if claimed > 0 {
		l.UpdatedAt = now
	}
	return claimed
}

// Complete archives the listing.
func (l *Listing) Complete(now time.Time) {
	l.Status = ListingStatusCompleted
	ts := now
	l.CompletedAt = &ts
	l.UpdatedAt = now
}

// Clone returns a deep copy, purchases included.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	c.Purchases = make([]Purchase, len(l.Purchases))
	copy(c.Purchases, l.Purchases)
	if l.CompletedAt != nil {
		ts := *l.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

// CostOf returns qty*price and false when the product overflows int64.
func CostOf(qty, price int64) (int64, bool) {
	if qty < 0 || price < 0 {
		return 0, false
	}
	if price != 0 && qty > math.MaxInt64/price {
		return 0, false
	}
	return qty * price, true
}
