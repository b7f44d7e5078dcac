package tenant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node setups.
type MemoryStore struct {
	txMu    sync.Mutex
	mu      sync.RWMutex
	tenants map[uuid.UUID]*Tenant
	members map[uuid.UUID]map[uuid.UUID]Member
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[uuid.UUID]*Tenant),
		members: make(map[uuid.UUID]map[uuid.UUID]Member),
	}
}

// Transact runs fn against the store, serialized with other transactions so
// check-then-act sequences inside fn observe a stable view. Transact offers
// no rollback, so fn must not rely on partial-failure cleanup beyond what
// the callers handle.
func (s *MemoryStore) Transact(ctx context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func (s *MemoryStore) CreateTenant(ctx context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tenants {
		if existing.DeletedAt != nil {
			continue
		}
		if existing.Subdomain == t.Subdomain || existing.Slug == t.Slug {
			return fmt.Errorf("%w: %q", ErrSubdomainTaken, t.Subdomain)
		}
		if t.CustomDomain != "" && existing.CustomDomain == t.CustomDomain {
			return fmt.Errorf("%w: %q", ErrDomainTaken, t.CustomDomain)
		}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateTenant(ctx context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tenants[t.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrTenantNotFound
	}
	if t.CustomDomain != "" {
		for id, other := range s.tenants {
			if id != t.ID && other.DeletedAt == nil && other.CustomDomain == t.CustomDomain {
				return fmt.Errorf("%w: %q", ErrDomainTaken, t.CustomDomain)
			}
		}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok || t.DeletedAt != nil {
		return ErrTenantNotFound
	}
	now := time.Now().UTC()
	t.DeletedAt = &now
	t.UpdatedAt = now
	return nil
}

func (s *MemoryStore) FindByKey(ctx context.Context, kind KeyKind, value string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value = strings.ToLower(value)
	for _, t := range s.tenants {
		if t.DeletedAt != nil {
			continue
		}
		var match bool
		switch kind {
		case KeyID:
			match = t.ID.String() == value
		case KeySubdomain:
			match = t.Subdomain == value
		case KeyCustomDomain:
			match = t.CustomDomain != "" && t.CustomDomain == value
		}
		if match {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTenantNotFound
}

func (s *MemoryStore) AddMember(ctx context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.members[m.TenantID]
	if !ok {
		byUser = make(map[uuid.UUID]Member)
		s.members[m.TenantID] = byUser
	}
	if _, exists := byUser[m.UserID]; exists {
		return ErrMemberExists
	}
	byUser[m.UserID] = m
	return nil
}

func (s *MemoryStore) RemoveMember(ctx context.Context, tenantID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser := s.members[tenantID]
	if _, ok := byUser[userID]; !ok {
		return ErrMemberNotFound
	}
	delete(byUser, userID)
	return nil
}

func (s *MemoryStore) SetMemberRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser := s.members[tenantID]
	m, ok := byUser[userID]
	if !ok {
		return ErrMemberNotFound
	}
	m.Role = role
	byUser[userID] = m
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, tenantID, userID uuid.UUID) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[tenantID][userID]
	if !ok {
		return nil, ErrMemberNotFound
	}
	cp := m
	return &cp, nil
}

func (s *MemoryStore) CountMembers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.members[tenantID])), nil
}

func (s *MemoryStore) CountOwners(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.members[tenantID] {
		if m.Role == RoleOwner {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) RemoveAllMembers(ctx context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, tenantID)
	return nil
}

type verificationKey struct {
	tenantID uuid.UUID
	domain   string
}

type verificationEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryVerificationStore holds pending domain verification tokens in
// process memory.
type MemoryVerificationStore struct {
	mu      sync.Mutex
	pending map[verificationKey]verificationEntry
}

// NewMemoryVerificationStore creates an empty verification store.
func NewMemoryVerificationStore() *MemoryVerificationStore {
	return &MemoryVerificationStore{pending: make(map[verificationKey]verificationEntry)}
}

func (s *MemoryVerificationStore) Put(ctx context.Context, tenantID uuid.UUID, domain, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[verificationKey{tenantID, domain}] = verificationEntry{token: token, expiresAt: expiresAt}
	return nil
}

func (s *MemoryVerificationStore) Get(ctx context.Context, tenantID uuid.UUID, domain string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := verificationKey{tenantID, domain}
	entry, ok := s.pending[key]
	if !ok {
		return "", ErrNoVerificationPending
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.pending, key)
		return "", ErrNoVerificationPending
	}
	return entry.token, nil
}

func (s *MemoryVerificationStore) Delete(ctx context.Context, tenantID uuid.UUID, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, verificationKey{tenantID, domain})
	return nil
}
