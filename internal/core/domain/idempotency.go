package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog records the outcome of a settled purchase so a retried request
// returns the same listing instead of buying twice.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "buyer_id:purchase:client_key"
	ListingID    uuid.UUID `json:"listing_id"`
	Amount       int64     `json:"amount"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// Matches reports whether a retried purchase asks for the same thing the
// recorded one settled. A key reused for another listing or amount does not match.
func (l *IdempotencyLog) Matches(listingID uuid.UUID, amount int64) bool {
	return l.ListingID == listingID && l.Amount == amount
}

// BuildPurchaseIdempotencyKey scopes a client-supplied key to its buyer.
func BuildPurchaseIdempotencyKey(buyerID uuid.UUID, clientKey string) string {
	return buyerID.String() + ":purchase:" + clientKey
}
