package memory

import (
	"context"
	"fmt"
	"time"

	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository on a Store.
type AccountRepo struct{ s *Store }

// NewAccountRepo creates an account repository backed by s.
func NewAccountRepo(s *Store) *AccountRepo { return &AccountRepo{s: s} }

func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.ID]; ok {
		return fmt.Errorf("insert account %s: %w", a.ID, ports.ErrDuplicateKey)
	}
	r.s.accounts[a.ID] = a.Clone()
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.s.account(id), nil
}

func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	t, err := asTx(r.s, tx)
	if err != nil {
		return nil, err
	}
	if a, ok := t.accounts[id]; ok {
		return a.Clone(), nil
	}
	return r.s.account(id), nil
}

func (r *AccountRepo) Update(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	t, err := asTx(r.s, tx)
	if err != nil {
		return err
	}
	current, ok := t.accounts[a.ID]
	if !ok {
		current = r.s.account(a.ID)
	}
	if current == nil || current.Version != a.Version {
		return fmt.Errorf("update account %s: %w", a.ID, ports.ErrVersionConflict)
	}
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	t.accounts[a.ID] = a.Clone()
	return nil
}

// ListingRepo implements ports.ListingRepository on a Store.
type ListingRepo struct{ s *Store }

// NewListingRepo creates a listing repository backed by s.
func NewListingRepo(s *Store) *ListingRepo { return &ListingRepo{s: s} }

func (r *ListingRepo) Create(ctx context.Context, tx pgx.Tx, l *domain.Listing) error {
	t, err := asTx(r.s, tx)
	if err != nil {
		return err
	}
	if _, staged := t.listings[l.ID]; staged || r.s.listing(l.ID) != nil {
		return fmt.Errorf("insert listing %s: %w", l.ID, ports.ErrDuplicateKey)
	}
	t.listings[l.ID] = l.Clone()
	return nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return r.s.listing(id), nil
}

func (r *ListingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Listing, error) {
	t, err := asTx(r.s, tx)
	if err != nil {
		return nil, err
	}
	if l, ok := t.listings[id]; ok {
		return l.Clone(), nil
	}
	return r.s.listing(id), nil
}

func (r *ListingRepo) Update(ctx context.Context, tx pgx.Tx, l *domain.Listing) error {
	t, err := asTx(r.s, tx)
	if err != nil {
		return err
	}
	current, ok := t.listings[l.ID]
	if !ok {
		current = r.s.listing(l.ID)
	}
	if current == nil || current.Version != l.Version {
		return fmt.Errorf("update listing %s: %w", l.ID, ports.ErrVersionConflict)
	}
	l.Version++
	l.UpdatedAt = time.Now().UTC()
	t.listings[l.ID] = l.Clone()
	return nil
}

func (r *ListingRepo) List(ctx context.Context, params ports.ListingListParams) ([]domain.Listing, int64, error) {
	page, total := r.s.listListings(params)
	return page, total, nil
}

// IdempotencyRepo implements ports.IdempotencyRepository on a Store.
type IdempotencyRepo struct{ s *Store }

// NewIdempotencyRepo creates an idempotency repository backed by s.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo { return &IdempotencyRepo{s: s} }

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	t, err := asTx(r.s, tx)
	if err != nil {
		return err
	}
	_, staged := t.idempotency[log.Key]
	_, committed := r.s.idempotencyLog(log.Key)
	if staged || committed {
		return fmt.Errorf("insert idempotency log: %w", ports.ErrDuplicateKey)
	}
	c := *log
	t.idempotency[log.Key] = &c
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	l, _ := r.s.idempotencyLog(key)
	return l, nil
}

// AuditRepo implements ports.AuditRepository on a Store.
type AuditRepo struct{ s *Store }

// NewAuditRepo creates an audit repository backed by s.
func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}
