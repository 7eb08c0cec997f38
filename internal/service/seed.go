package service

import (
	"context"
	"fmt"

	"idle-market/config"
	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SeedAccounts provisions the configured accounts that do not exist yet.
// Existing accounts are left untouched so restarts never reset balances.
func SeedAccounts(ctx context.Context, repo ports.AccountRepository, seeds []config.SeedAccount, log zerolog.Logger) (int, error) {
	created := 0
	for _, seed := range seeds {
		account, err := accountFromSeed(seed)
		if err != nil {
			return created, err
		}

		existing, err := repo.GetByID(ctx, account.ID)
		if err != nil {
			return created, fmt.Errorf("look up seed account %s: %w", account.ID, err)
		}
		if existing != nil {
			log.Debug().Str("account_id", account.ID.String()).Msg("seed account exists, skipping")
			continue
		}

		if err := repo.Create(ctx, account); err != nil {
			return created, fmt.Errorf("create seed account %s: %w", account.ID, err)
		}
		created++
	}
	return created, nil
}

func accountFromSeed(seed config.SeedAccount) (*domain.Account, error) {
	id, err := uuid.Parse(seed.ID)
	if err != nil {
		return nil, fmt.Errorf("seed account id %q: %w", seed.ID, err)
	}
	if seed.Balance < 0 {
		return nil, fmt.Errorf("seed account %s: negative balance", id)
	}

	account := domain.NewAccount(id, seed.Balance)
	buckets := map[domain.ItemCategory]map[string]int64{
		domain.ItemCategoryFood:    seed.Food,
		domain.ItemCategoryGeneral: seed.General,
	}
	for category, holdings := range buckets {
		for item, qty := range holdings {
			if qty == 0 {
				continue
			}
			if err := account.CreditItem(category, item, qty); err != nil {
				return nil, fmt.Errorf("seed account %s item %q: %w", id, item, err)
			}
		}
	}
	return account, nil
}
