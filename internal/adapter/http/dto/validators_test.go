package dto

import (
	"testing"
	"time"

	"idle-market/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Binding validation tests ---

func TestCreateListingRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateListingRequest
		wantErr bool
	}{
		{"valid", CreateListingRequest{Item: "carrot", Amount: 3, Price: 5, Currency: "coins"}, false},
		{"padded item", CreateListingRequest{Item: "  carrot  ", Amount: 3, Price: 5, Currency: "coins"}, true},
		{"markup in item", CreateListingRequest{Item: "<b>sword</b>", Amount: 1, Price: 1, Currency: "coins"}, true},
		{"padded currency", CreateListingRequest{Item: "carrot", Amount: 1, Price: 1, Currency: " coins "}, true},
		{"zero price", CreateListingRequest{Item: "carrot", Amount: 1, Currency: "coins"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestListListingsQuery_Validation(t *testing.T) {
	item := "gem"
	assert.NoError(t, binding.Validator.ValidateStruct(&ListListingsQuery{Item: &item}))
	assert.NoError(t, binding.Validator.ValidateStruct(&ListListingsQuery{}), "filters are optional")

	padded := "  gem  "
	assert.Error(t, binding.Validator.ValidateStruct(&ListListingsQuery{Item: &padded}))

	status := "OPEN"
	assert.Error(t, binding.Validator.ValidateStruct(&ListListingsQuery{Status: &status}))
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"carrot",
		"iron_sword",
		"gem.blue",
		"key-001",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, IsSafeID(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"iron sword", // space
		"gem<1>",     // angle brackets
		"x;DROP",     // semicolon
		"",           // empty
		"a\nb",       // newline
	}
	for _, tc := range cases {
		assert.False(t, IsSafeID(tc), "expected invalid: %s", tc)
	}
}

// --- Conversion tests ---

func TestNewListingResponse(t *testing.T) {
	now := time.Now().UTC()
	buyer := uuid.New()
	l := &domain.Listing{
		ID:             uuid.New(),
		SellerID:       uuid.New(),
		Item:           "carrot",
		Category:       domain.ItemCategoryFood,
		Amount:         6,
		OriginalAmount: 10,
		Price:          5,
		Currency:       "coins",
		Status:         domain.ListingStatusActive,
		Purchases:      []domain.Purchase{{BuyerID: buyer, Amount: 4, PurchasedAt: now}},
		ListedAt:       now,
		UpdatedAt:      now,
	}

	resp := NewListingResponse(l)

	assert.Equal(t, "FOOD", resp.Category)
	assert.Equal(t, "ACTIVE", resp.Status)
	assert.Equal(t, int64(4), resp.UnclaimedAmount)
	require.Len(t, resp.Purchases, 1)
	assert.Equal(t, buyer, resp.Purchases[0].BuyerID)
}

func TestNewListingListResponse_TotalPages(t *testing.T) {
	resp := NewListingListResponse([]domain.Listing{{}, {}}, 41, 2, 20)

	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 2, resp.Page)

	empty := NewListingListResponse(nil, 0, 1, 20)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestNewAccountResponse_SplitsBuckets(t *testing.T) {
	a := domain.NewAccount(uuid.New(), 100)
	a.Inventory[domain.ItemCategoryFood]["carrot"] = 7
	a.Inventory[domain.ItemCategoryGeneral]["sword"] = 1

	resp := NewAccountResponse(a)

	assert.Equal(t, int64(100), resp.CurrentBalance)
	assert.Equal(t, map[string]int64{"carrot": 7}, resp.Food)
	assert.Equal(t, map[string]int64{"sword": 1}, resp.Items)
}
