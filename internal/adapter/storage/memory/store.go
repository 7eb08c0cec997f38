// Package memory is a process-local implementation of the storage ports.
// Transactions are serialized by a single store-wide slot and stage their
// writes until Commit, so a rolled back transaction leaves no trace.
package memory

import (
	"context"
	"sort"
	"sync"

	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds committed state for all repositories.
type Store struct {
	slot chan struct{}

	mu          sync.RWMutex
	accounts    map[uuid.UUID]*domain.Account
	listings    map[uuid.UUID]*domain.Listing
	idempotency map[string]*domain.IdempotencyLog
	audit       []domain.AuditLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		slot:        make(chan struct{}, 1),
		accounts:    make(map[uuid.UUID]*domain.Account),
		listings:    make(map[uuid.UUID]*domain.Listing),
		idempotency: make(map[string]*domain.IdempotencyLog),
	}
}

// Begin implements ports.DBTransactor. It blocks until no other transaction is open.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return newTx(s), nil
}

// Seed stores accounts as committed state, replacing any with the same id.
func (s *Store) Seed(accounts ...*domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accounts {
		s.accounts[a.ID] = a.Clone()
	}
}

// AuditEntries returns a copy of every recorded audit entry.
func (s *Store) AuditEntries() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

func (s *Store) account(id uuid.UUID) *domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[id].Clone()
}

func (s *Store) listing(id uuid.UUID) *domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listings[id].Clone()
}

func (s *Store) idempotencyLog(key string) (*domain.IdempotencyLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.idempotency[key]
	if !ok {
		return nil, false
	}
	c := *l
	return &c, true
}

// apply publishes a committed transaction's staged writes.
func (s *Store) apply(t *Tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range t.accounts {
		s.accounts[id] = a
	}
	for id, l := range t.listings {
		s.listings[id] = l
	}
	for k, l := range t.idempotency {
		s.idempotency[k] = l
	}
}

func (s *Store) release() {
	<-s.slot
}

func (s *Store) listListings(params ports.ListingListParams) ([]domain.Listing, int64) {
	s.mu.RLock()
	matched := make([]*domain.Listing, 0)
	for _, l := range s.listings {
		if matches(l, params) {
			matched = append(matched, l.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ListedAt.Equal(matched[j].ListedAt) {
			return matched[i].ListedAt.After(matched[j].ListedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + params.PageSize
	if end > len(matched) || params.PageSize <= 0 {
		end = len(matched)
	}

	page := make([]domain.Listing, 0, end-start)
	for _, l := range matched[start:end] {
		page = append(page, *l)
	}
	return page, total
}

func matches(l *domain.Listing, p ports.ListingListParams) bool {
	if p.SellerID != nil && l.SellerID != *p.SellerID {
		return false
	}
	if p.Item != nil && l.Item != *p.Item {
		return false
	}
	if p.Currency != nil && l.Currency != *p.Currency {
		return false
	}
	if p.Status != nil && l.Status != *p.Status {
		return false
	}
	if p.From != nil && l.ListedAt.Before(*p.From) {
		return false
	}
	if p.To != nil && l.ListedAt.After(*p.To) {
		return false
	}
	return true
}
