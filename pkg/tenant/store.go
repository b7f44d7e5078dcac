package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// KeyKind identifies which unique tenant key a lookup uses.
type KeyKind string

const (
	KeyID           KeyKind = "uuid"
	KeySubdomain    KeyKind = "subdomain"
	KeyCustomDomain KeyKind = "custom_domain"
)

// Store is the backing tenant and membership store. Every method is atomic on
// its own; multi-step operations run inside Transact, which executes fn
// against a store view bound to a single transaction.
//
// Implementations must exclude tombstoned (deleted) tenants from all lookups
// and enforce uniqueness of slug, subdomain, and custom domain across
// non-deleted rows, reporting violations as ErrSubdomainTaken or
// ErrDomainTaken.
type Store interface {
	Transact(ctx context.Context, fn func(Store) error) error

	CreateTenant(ctx context.Context, t *Tenant) error
	UpdateTenant(ctx context.Context, t *Tenant) error
	// DeleteTenant tombstones the tenant; the row remains for history but is
	// excluded from every lookup.
	DeleteTenant(ctx context.Context, id uuid.UUID) error
	FindByKey(ctx context.Context, kind KeyKind, value string) (*Tenant, error)

	AddMember(ctx context.Context, m Member) error
	RemoveMember(ctx context.Context, tenantID, userID uuid.UUID) error
	SetMemberRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) error
	GetMember(ctx context.Context, tenantID, userID uuid.UUID) (*Member, error)
	CountMembers(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountOwners(ctx context.Context, tenantID uuid.UUID) (int64, error)
	RemoveAllMembers(ctx context.Context, tenantID uuid.UUID) error
}

// VerificationStore holds pending domain verification tokens keyed by
// (tenant, domain), each with an expiry.
type VerificationStore interface {
	Put(ctx context.Context, tenantID uuid.UUID, domain, token string, expiresAt time.Time) error
	// Get returns the pending token, or ErrNoVerificationPending when none
	// exists or it has expired.
	Get(ctx context.Context, tenantID uuid.UUID, domain string) (string, error)
	Delete(ctx context.Context, tenantID uuid.UUID, domain string) error
}
