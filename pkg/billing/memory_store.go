package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node setups.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]*Subscription)}
}

// Transact runs fn against the store. Methods are individually atomic; there
// is no rollback.
func (s *MemoryStore) Transact(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *MemoryStore) Insert(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) Active(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *Subscription
	for _, sub := range s.subs {
		if sub.TenantID != tenantID || !sub.Open() {
			continue
		}
		if newest == nil || sub.CreatedAt.After(newest.CreatedAt) {
			newest = sub
		}
	}
	if newest == nil {
		return nil, ErrNoActiveSubscription
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) LatestCanceled(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *Subscription
	for _, sub := range s.subs {
		if sub.TenantID != tenantID || !sub.IsCanceled() {
			continue
		}
		if newest == nil || sub.CreatedAt.After(newest.CreatedAt) {
			newest = sub
		}
	}
	if newest == nil {
		return nil, ErrSubscriptionNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) ByGatewaySubID(ctx context.Context, gatewaySubID string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if gatewaySubID == "" {
		return nil, ErrSubscriptionNotFound
	}
	for _, sub := range s.subs {
		if sub.GatewaySubID == gatewaySubID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) CancelOpen(ctx context.Context, tenantID uuid.UUID, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for _, sub := range s.subs {
		if sub.TenantID != tenantID || !sub.Open() {
			continue
		}
		sub.Status = StatusCanceled
		sub.CanceledAt = &now
		sub.CancelReason = reason
		sub.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *MemoryStore) History(ctx context.Context, tenantID uuid.UUID) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.TenantID == tenantID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
