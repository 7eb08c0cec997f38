package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed listing state change.
type EventType string

const (
	EventListingCreated   EventType = "listing.created"
	EventListingPurchased EventType = "listing.purchased"
	EventListingClaimed   EventType = "listing.claimed"
	EventListingCancelled EventType = "listing.cancelled"
)

// ListingEvent is published after a trade transaction commits.
type ListingEvent struct {
	Type       EventType     `json:"type"`
	ListingID  uuid.UUID     `json:"listing_id"`
	SellerID   uuid.UUID     `json:"seller_id"`
	ActorID    uuid.UUID     `json:"actor_id"`
	Item       string        `json:"item"`
	Currency   string        `json:"currency"`
	Price      int64         `json:"price"`
	Quantity   int64         `json:"quantity"` // listed, bought, claimed or returned, by Type
	Proceeds   int64         `json:"proceeds,omitempty"`
	Remaining  int64         `json:"remaining"`
	Status     ListingStatus `json:"status"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewListingEvent snapshots l into an event of type t.
func NewListingEvent(t EventType, l *Listing, actor uuid.UUID, qty, proceeds int64) ListingEvent {
	return ListingEvent{
		Type:       t,
		ListingID:  l.ID,
		SellerID:   l.SellerID,
		ActorID:    actor,
		Item:       l.Item,
		Currency:   l.Currency,
		Price:      l.Price,
		Quantity:   qty,
		Proceeds:   proceeds,
		Remaining:  l.Amount,
		Status:     l.Status,
		OccurredAt: time.Now().UTC(),
	}
}
