package service

import (
	"context"
	"testing"

	"idle-market/config"
	"idle-market/internal/adapter/storage/memory"
	"idle-market/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAccounts_CreatesMissingOnly(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewAccountRepo(store)
	ctx := context.Background()

	existing := domain.NewAccount(uuid.New(), 7)
	store.Seed(existing)

	fresh := uuid.New()
	n, err := SeedAccounts(ctx, repo, []config.SeedAccount{
		{ID: existing.ID.String(), Balance: 1000},
		{ID: fresh.String(), Balance: 100, Food: map[string]int64{"carrot": 10}, General: map[string]int64{"rope": 2}},
	}, zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, 1, n)

	kept, err := repo.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), kept.CurrentBalance)

	created, err := repo.GetByID(ctx, fresh)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, int64(100), created.CurrentBalance)
	assert.Equal(t, int64(10), created.Quantity(domain.ItemCategoryFood, "carrot"))
	assert.Equal(t, int64(2), created.Quantity(domain.ItemCategoryGeneral, "rope"))
}

func TestSeedAccounts_RejectsBadSeeds(t *testing.T) {
	repo := memory.NewAccountRepo(memory.NewStore())

	_, err := SeedAccounts(context.Background(), repo, []config.SeedAccount{{ID: "nope"}}, zerolog.Nop())
	assert.Error(t, err)

	_, err = SeedAccounts(context.Background(), repo, []config.SeedAccount{
		{ID: uuid.NewString(), Food: map[string]int64{"carrot": -1}},
	}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
