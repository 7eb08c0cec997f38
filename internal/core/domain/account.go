package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// ItemCategory selects the inventory bucket an item lives in.
type ItemCategory string

const (
	ItemCategoryFood    ItemCategory = "FOOD"
	ItemCategoryGeneral ItemCategory = "GENERAL"
)

// Valid reports whether c is a known bucket.
func (c ItemCategory) Valid() bool {
	return c == ItemCategoryFood || c == ItemCategoryGeneral
}

var (
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrUnknownCategory       = errors.New("unknown item category")
	ErrCreditOverflow        = errors.New("credit exceeds the representable range")
)

// Holdings maps an item id to the owned quantity.
type Holdings map[string]int64

// Account is the ledger aggregate read and written as a whole inside a trade transaction.
type Account struct {
	ID             uuid.UUID                 `json:"id"`
	CurrentBalance int64                     `json:"current_balance"`
	TotalSpent     int64                     `json:"total_spent"`
	PeriodSpent    int64                     `json:"period_spent"`
	Inventory      map[ItemCategory]Holdings `json:"inventory"`
	Version        int64                     `json:"-"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// NewAccount returns an empty account with both buckets allocated.
func NewAccount(id uuid.UUID, balance int64) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:             id,
		CurrentBalance: balance,
		Inventory: map[ItemCategory]Holdings{
			ItemCategoryFood:    {},
			ItemCategoryGeneral: {},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a *Account) bucket(category ItemCategory) (Holdings, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}
	if a.Inventory == nil {
		a.Inventory = make(map[ItemCategory]Holdings, 2)
	}
	h, ok := a.Inventory[category]
	if !ok || h == nil {
		h = Holdings{}
		a.Inventory[category] = h
	}
	return h, nil
}

// Quantity returns the owned quantity of item in category, zero when absent.
func (a *Account) Quantity(category ItemCategory, item string) int64 {
	return a.Inventory[category][item]
}

// DebitItem removes qty of item from the category bucket.
// A missing entry counts as zero held.
func (a *Account) DebitItem(category ItemCategory, item string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	h, err := a.bucket(category)
	if err != nil {
		return err
	}
	held, ok := h[item]
	if !ok || held < qty {
		return ErrInsufficientInventory
	}
	h[item] = held - qty
	return nil
}

// CreditItem adds qty of item to the category bucket, creating the entry if absent.
func (a *Account) CreditItem(category ItemCategory, item string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	h, err := a.bucket(category)
	if err != nil {
		return err
	}
	if h[item] > math.MaxInt64-qty {
		return ErrCreditOverflow
	}
	h[item] += qty
	return nil
}

// Spend debits cost from the balance and bumps both spend counters.
func (a *Account) Spend(cost int64) error {
	if cost <= 0 {
		return ErrInvalidQuantity
	}
	if a.CurrentBalance < cost {
		return ErrInsufficientBalance
	}
	a.CurrentBalance -= cost
	a.TotalSpent += cost
	a.PeriodSpent += cost
	return nil
}

// Earn credits proceeds to the balance. Spend counters are untouched.
func (a *Account) Earn(amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuantity
	}
	if a.CurrentBalance > math.MaxInt64-amount {
		return ErrCreditOverflow
	}
	a.CurrentBalance += amount
	return nil
}

// Clone returns a deep copy, inventory maps included.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Inventory = make(map[ItemCategory]Holdings, len(a.Inventory))
	for cat, h := range a.Inventory {
		hc := make(Holdings, len(h))
		for item, qty := range h {
			hc[item] = qty
		}
		c.Inventory[cat] = hc
	}
	return &c
}
