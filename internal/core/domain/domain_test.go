package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListing_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status ListingStatus
		want   bool
	}{
		{"active", ListingStatusActive, true},
		{"sold", ListingStatusSold, false},
		{"completed", ListingStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Listing{Status: tt.status}
			assert.Equal(t, tt.want, l.IsActive())
		})
	}
}

func TestListingStatus_Valid(t *testing.T) {
	assert.True(t, ListingStatusActive.Valid())
	assert.True(t, ListingStatusSold.Valid())
	assert.True(t, ListingStatusCompleted.Valid())
	assert.False(t, ListingStatus("OPEN").Valid())
}

func TestListing_ApplyPurchase(t *testing.T) {
	now := time.Now().UTC()
	buyer := uuid.New()
	l := &Listing{Amount: 10, OriginalAmount: 10, Price: 5, Status: ListingStatusActive}

	l.ApplyPurchase(buyer, 4, now)
	assert.Equal(t, int64(6), l.Amount)
	assert.Equal(t, ListingStatusActive, l.Status)
	require.Len(t, l.Purchases, 1)
	assert.Equal(t, buyer, l.Purchases[0].BuyerID)
	assert.False(t, l.Purchases[0].Claimed)

	l.ApplyPurchase(buyer, 6, now)
	assert.Equal(t, int64(0), l.Amount)
	assert.Equal(t, ListingStatusSold, l.Status)
	assert.Equal(t, int64(10), l.SoldAmount())
	assert.Equal(t, int64(10), l.UnclaimedAmount())
	assert.Equal(t, int64(50), l.OutstandingProceeds())
}

func TestListing_SettleClaims(t *testing.T) {
	now := time.Now().UTC()
	l := &Listing{
		Price: 3,
		Purchases: []Purchase{
			{Amount: 2, Claimed: true},
			{Amount: 5},
			{Amount: 1},
		},
	}

	assert.Equal(t, int64(6), l.SettleClaims(now))
	assert.Equal(t, int64(0), l.UnclaimedAmount())
	for _, p := range l.Purchases[1:] {
		require.NotNil(t, p.ClaimedAt)
		assert.True(t, p.Claimed)
	}
	assert.Nil(t, l.Purchases[0].ClaimedAt)

	assert.Equal(t, int64(0), l.SettleClaims(now))
}

func TestListing_Clone(t *testing.T) {
	l := &Listing{Purchases: []Purchase{{Amount: 1}}}
	c := l.Clone()
	c.Purchases[0].Claimed = true
	c.Purchases = append(c.Purchases, Purchase{Amount: 2})

	assert.False(t, l.Purchases[0].Claimed)
	assert.Len(t, l.Purchases, 1)
}

func TestCostOf(t *testing.T) {
	cost, ok := CostOf(4, 5)
	assert.True(t, ok)
	assert.Equal(t, int64(20), cost)

	_, ok = CostOf(math.MaxInt64/2+1, 2)
	assert.False(t, ok)

	_, ok = CostOf(-1, 2)
	assert.False(t, ok)
}

func TestAccount_DebitItem(t *testing.T) {
	tests := []struct {
		name     string
		holdings Holdings
		qty      int64
		wantErr  error
		wantLeft int64
	}{
		{"exact", Holdings{"carrot": 5}, 5, nil, 0},
		{"partial", Holdings{"carrot": 5}, 3, nil, 2},
		{"short", Holdings{"carrot": 2}, 3, ErrInsufficientInventory, 2},
		{"missing entry", Holdings{}, 1, ErrInsufficientInventory, 0},
		{"zero qty", Holdings{"carrot": 5}, 0, ErrInvalidQuantity, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAccount(uuid.New(), 0)
			a.Inventory[ItemCategoryFood] = tt.holdings

			err := a.DebitItem(ItemCategoryFood, "carrot", tt.qty)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantLeft, a.Quantity(ItemCategoryFood, "carrot"))
		})
	}
}

func TestAccount_CreditItem(t *testing.T) {
	a := &Account{}
	require.NoError(t, a.CreditItem(ItemCategoryGeneral, "sword", 2))
	require.NoError(t, a.CreditItem(ItemCategoryGeneral, "sword", 3))

	assert.Equal(t, int64(5), a.Quantity(ItemCategoryGeneral, "sword"))
	assert.Equal(t, int64(0), a.Quantity(ItemCategoryFood, "sword"))
	assert.ErrorIs(t, a.CreditItem(ItemCategory("PETS"), "cat", 1), ErrUnknownCategory)
}

func TestAccount_SpendAndEarn(t *testing.T) {
	a := NewAccount(uuid.New(), 100)

	require.NoError(t, a.Spend(30))
	assert.Equal(t, int64(70), a.CurrentBalance)
	assert.Equal(t, int64(30), a.TotalSpent)
	assert.Equal(t, int64(30), a.PeriodSpent)

	assert.ErrorIs(t, a.Spend(71), ErrInsufficientBalance)
	assert.Equal(t, int64(70), a.CurrentBalance)

	require.NoError(t, a.Earn(50))
	assert.Equal(t, int64(120), a.CurrentBalance)
	assert.Equal(t, int64(30), a.TotalSpent)
}

func TestAccount_CreditOverflow(t *testing.T) {
	a := NewAccount(uuid.New(), math.MaxInt64-10)

	assert.ErrorIs(t, a.Earn(11), ErrCreditOverflow)
	assert.Equal(t, int64(math.MaxInt64-10), a.CurrentBalance)
	require.NoError(t, a.Earn(10))
	assert.Equal(t, int64(math.MaxInt64), a.CurrentBalance)

	require.NoError(t, a.CreditItem(ItemCategoryFood, "carrot", math.MaxInt64-1))
	assert.ErrorIs(t, a.CreditItem(ItemCategoryFood, "carrot", 2), ErrCreditOverflow)
	assert.Equal(t, int64(math.MaxInt64-1), a.Quantity(ItemCategoryFood, "carrot"))
	require.NoError(t, a.CreditItem(ItemCategoryFood, "carrot", 1))
}

func TestIdempotencyLog_Matches(t *testing.T) {
	listingID := uuid.New()
	log := &IdempotencyLog{ListingID: listingID, Amount: 3}

	assert.True(t, log.Matches(listingID, 3))
	assert.False(t, log.Matches(listingID, 2))
	assert.False(t, log.Matches(uuid.New(), 3))
}

func TestAccount_Clone(t *testing.T) {
	a := NewAccount(uuid.New(), 10)
	require.NoError(t, a.CreditItem(ItemCategoryFood, "carrot", 1))

	c := a.Clone()
	require.NoError(t, c.CreditItem(ItemCategoryFood, "carrot", 1))

	assert.Equal(t, int64(1), a.Quantity(ItemCategoryFood, "carrot"))
	assert.Equal(t, int64(2), c.Quantity(ItemCategoryFood, "carrot"))
}

func TestBuildPurchaseIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := BuildPurchaseIdempotencyKey(id, "retry-1")
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000:purchase:retry-1", key)
}

func TestNewListingEvent(t *testing.T) {
	actor := uuid.New()
	l := &Listing{ID: uuid.New(), SellerID: uuid.New(), Item: "carrot", Amount: 3, Price: 2, Status: ListingStatusActive}

	ev := NewListingEvent(EventListingPurchased, l, actor, 7, 14)
	assert.Equal(t, EventListingPurchased, ev.Type)
	assert.Equal(t, l.ID, ev.ListingID)
	assert.Equal(t, actor, ev.ActorID)
	assert.Equal(t, int64(3), ev.Remaining)
	assert.Equal(t, int64(14), ev.Proceeds)
}
