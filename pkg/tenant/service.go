package tenant

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/formforge/formforge/pkg/plan"
)

// VerificationTokenPrefix makes verification tokens recognizable in DNS
// record listings.
const VerificationTokenPrefix = "formforge-verify="

// subdomainPattern restricts subdomains to DNS-safe labels.
var subdomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// TXTLookupFunc resolves TXT records for a name. Injected so tests and
// alternative resolvers can replace the system resolver.
type TXTLookupFunc func(ctx context.Context, name string) ([]string, error)

// CascadeFunc removes tenant-owned data (forms, submissions, subscription
// history) as part of tenant deletion. Cascades run before the tenant row is
// tombstoned and their failure aborts the whole deletion.
type CascadeFunc func(ctx context.Context, tenantID uuid.UUID) error

// PlanResolver returns the plan ID governing a tenant's limits. An empty
// string falls back to the free plan.
type PlanResolver func(ctx context.Context, tenantID uuid.UUID) string

// EventType tags lifecycle events emitted to external collaborators.
type EventType string

const (
	EventTenantCreated   EventType = "tenant.created"
	EventTenantSuspended EventType = "tenant.suspended"
	EventTenantActivated EventType = "tenant.activated"
	EventTenantDeleted   EventType = "tenant.deleted"
)

// Event describes a tenant lifecycle change.
type Event struct {
	Type    EventType
	Tenant  *Tenant
	OwnerID uuid.UUID // set for EventTenantCreated
}

// EventHook receives lifecycle events. Hooks run synchronously after the
// operation commits; they must not block for long.
type EventHook func(ctx context.Context, e Event)

// StatCounter returns a single named usage figure for a tenant (forms,
// submissions this month, storage bytes). Counters live in the modules that
// own the data and are registered at wiring time.
type StatCounter func(ctx context.Context, tenantID uuid.UUID) (int64, error)

// Stats is a snapshot of a tenant's usage counters plus its membership size.
type Stats struct {
	Members  int64            `json:"members"`
	Counters map[string]int64 `json:"counters"`
}

// Service is the tenant lifecycle manager. All tenant state changes go
// through it so the Directory stays coherent with the store.
type Service struct {
	store        Store
	dir          *Directory
	registry     *plan.Registry
	verification VerificationStore
	cfg          Config
	log          *slog.Logger
	planOf       PlanResolver
	lookupTXT    TXTLookupFunc
	hooks        []EventHook
	cascades     []CascadeFunc
	counters     map[string]StatCounter
	reserved     map[string]struct{}
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPlanResolver sets how the service determines a tenant's current plan
// for limit checks. Defaults to the free plan for every tenant.
func WithPlanResolver(fn PlanResolver) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.planOf = fn
		}
	}
}

// WithTXTLookup replaces the DNS TXT resolver used for domain verification.
func WithTXTLookup(fn TXTLookupFunc) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.lookupTXT = fn
		}
	}
}

// WithEventHook registers a lifecycle event hook.
func WithEventHook(hook EventHook) ServiceOption {
	return func(s *Service) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

// WithCascade registers a deletion cascade for tenant-owned data.
func WithCascade(fn CascadeFunc) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.cascades = append(s.cascades, fn)
		}
	}
}

// WithStatCounter registers a named usage counter included in Stats.
func WithStatCounter(name string, fn StatCounter) ServiceOption {
	return func(s *Service) {
		if name != "" && fn != nil {
			if s.counters == nil {
				s.counters = make(map[string]StatCounter)
			}
			s.counters[name] = fn
		}
	}
}

// WithVerificationStore sets the pending-token store for domain verification.
// Defaults to an in-process store.
func WithVerificationStore(vs VerificationStore) ServiceOption {
	return func(s *Service) {
		if vs != nil {
			s.verification = vs
		}
	}
}

// NewService creates the lifecycle manager. store, dir, and registry are
// required; the constructor panics on nil to fail fast at wiring time.
func NewService(store Store, dir *Directory, registry *plan.Registry, cfg Config, opts ...ServiceOption) *Service {
	if store == nil {
		panic("tenant: Store is required")
	}
	if dir == nil {
		panic("tenant: Directory is required")
	}
	if registry == nil {
		panic("tenant: plan registry is required")
	}

	s := &Service{
		store:    store,
		dir:      dir,
		registry: registry,
		cfg:      cfg,
		log:      slog.Default(),
		planOf:   func(context.Context, uuid.UUID) string { return "" },
		lookupTXT: func(ctx context.Context, name string) ([]string, error) {
			return net.DefaultResolver.LookupTXT(ctx, name)
		},
		reserved: make(map[string]struct{}, len(cfg.ReservedSubdomains)),
	}
	for _, r := range cfg.ReservedSubdomains {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			s.reserved[r] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.verification == nil {
		s.verification = NewMemoryVerificationStore()
	}
	return s
}

// CreateTenant provisions a tenant on trial with the given owner. The
// subdomain is normalized to lowercase; the slug derives from the name.
func (s *Service) CreateTenant(ctx context.Context, name, subdomain string, ownerID uuid.UUID) (*Tenant, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if !subdomainPattern.MatchString(subdomain) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubdomain, subdomain)
	}
	if _, ok := s.reserved[subdomain]; ok {
		return nil, fmt.Errorf("%w: %q", ErrSubdomainReserved, subdomain)
	}

	now := time.Now().UTC()
	trialEnds := now.AddDate(0, 0, s.cfg.TrialDays)
	t := &Tenant{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slug.Make(name),
		Subdomain:   subdomain,
		Status:      StatusTrial,
		TrialEndsAt: &trialEnds,
		Settings:    DefaultSettings(),
		Branding:    DefaultBranding(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.Transact(ctx, func(tx Store) error {
		if err := tx.CreateTenant(ctx, t); err != nil {
			return err
		}
		return tx.AddMember(ctx, Member{
			TenantID:  t.ID,
			UserID:    ownerID,
			Role:      RoleOwner,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{Type: EventTenantCreated, Tenant: t, OwnerID: ownerID})
	s.log.InfoContext(ctx, "tenant created",
		"tenant_id", t.ID, "subdomain", t.Subdomain)
	return t, nil
}

// AddUser adds a member, enforcing the plan's team_members limit. Only a
// limit of -1 is unlimited; a limit of 0 admits nobody. The seat count and
// the insert run in one transaction so concurrent adds cannot both pass the
// check and breach the cap.
func (s *Service) AddUser(ctx context.Context, t *Tenant, userID uuid.UUID, role Role) error {
	planID := s.planOf(ctx, t.ID)
	return s.store.Transact(ctx, func(tx Store) error {
		count, err := tx.CountMembers(ctx, t.ID)
		if err != nil {
			return err
		}
		if !s.registry.WithinLimit(planID, plan.FeatureTeamMembers, count) {
			return fmt.Errorf("%w: team members", ErrLimitExceeded)
		}
		return tx.AddMember(ctx, Member{
			TenantID:  t.ID,
			UserID:    userID,
			Role:      role,
			CreatedAt: time.Now().UTC(),
		})
	})
}

// RemoveUser detaches a member. Removing the sole owner is an invariant
// violation; transfer ownership first.
func (s *Service) RemoveUser(ctx context.Context, t *Tenant, userID uuid.UUID) error {
	m, err := s.store.GetMember(ctx, t.ID, userID)
	if err != nil {
		return err
	}
	if m.Role == RoleOwner {
		owners, err := s.store.CountOwners(ctx, t.ID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}
	return s.store.RemoveMember(ctx, t.ID, userID)
}

// TransferOwnership promotes `to` to owner and demotes `from` to admin in
// one atomic step, so the tenant never observably lacks an owner.
func (s *Service) TransferOwnership(ctx context.Context, t *Tenant, from, to uuid.UUID) error {
	return s.store.Transact(ctx, func(tx Store) error {
		if _, err := tx.GetMember(ctx, t.ID, from); err != nil {
			return err
		}
		// Promote first: the tenant must have an owner at every point.
		if _, err := tx.GetMember(ctx, t.ID, to); err != nil {
			if !errors.Is(err, ErrMemberNotFound) {
				return err
			}
			if err := tx.AddMember(ctx, Member{
				TenantID:  t.ID,
				UserID:    to,
				Role:      RoleOwner,
				CreatedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
		} else if err := tx.SetMemberRole(ctx, t.ID, to, RoleOwner); err != nil {
			return err
		}
		return tx.SetMemberRole(ctx, t.ID, from, RoleAdmin)
	})
}

// Suspend marks the tenant suspended and invalidates the directory before
// returning, so the very next request observes the suspension.
func (s *Service) Suspend(ctx context.Context, t *Tenant, reason string) error {
	t.Status = StatusSuspended
	t.Settings.SuspensionReason = reason
	t.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return err
	}
	s.dir.Invalidate(ctx, t)

	s.emit(ctx, Event{Type: EventTenantSuspended, Tenant: t})
	s.log.WarnContext(ctx, "tenant suspended", "tenant_id", t.ID, "reason", reason)
	return nil
}

// Activate marks the tenant active and invalidates the directory before
// returning.
func (s *Service) Activate(ctx context.Context, t *Tenant) error {
	t.Status = StatusActive
	t.Settings.SuspensionReason = ""
	t.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return err
	}
	s.dir.Invalidate(ctx, t)

	s.emit(ctx, Event{Type: EventTenantActivated, Tenant: t})
	return nil
}

// SetVaultRef records the payment vault reference issued by the gateway.
func (s *Service) SetVaultRef(ctx context.Context, t *Tenant, vaultRef string) error {
	t.VaultRef = vaultRef
	t.UpdatedAt = time.Now().UTC()
	return s.store.UpdateTenant(ctx, t)
}

// Delete removes the tenant and everything it owns: registered cascades run
// first (forms, submissions, subscription history), then members are
// detached and the tenant row is tombstoned. Irreversible.
func (s *Service) Delete(ctx context.Context, t *Tenant) error {
	err := s.store.Transact(ctx, func(tx Store) error {
		for _, cascade := range s.cascades {
			if err := cascade(ctx, t.ID); err != nil {
				return err
			}
		}
		if err := tx.RemoveAllMembers(ctx, t.ID); err != nil {
			return err
		}
		return tx.DeleteTenant(ctx, t.ID)
	})
	if err != nil {
		return err
	}
	s.dir.Invalidate(ctx, t)

	s.emit(ctx, Event{Type: EventTenantDeleted, Tenant: t})
	s.log.InfoContext(ctx, "tenant deleted", "tenant_id", t.ID)
	return nil
}

// Stats collects the tenant's membership size and every registered usage
// counter. A failing counter fails the whole snapshot.
func (s *Service) Stats(ctx context.Context, t *Tenant) (*Stats, error) {
	members, err := s.store.CountMembers(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	st := &Stats{Members: members, Counters: make(map[string]int64, len(s.counters))}
	for name, fn := range s.counters {
		n, err := fn(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("tenant: stat %q: %w", name, err)
		}
		st.Counters[name] = n
	}
	return st, nil
}

// SubdomainAvailable reports whether a subdomain can still be claimed.
func (s *Service) SubdomainAvailable(ctx context.Context, subdomain string) (bool, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if !subdomainPattern.MatchString(subdomain) {
		return false, nil
	}
	if _, ok := s.reserved[subdomain]; ok {
		return false, nil
	}
	_, err := s.store.FindByKey(ctx, KeySubdomain, subdomain)
	if errors.Is(err, ErrTenantNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// IssueVerificationToken generates and stores a domain verification token.
// The caller publishes it as a DNS TXT record before calling VerifyDomain.
func (s *Service) IssueVerificationToken(ctx context.Context, t *Tenant, domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("tenant: generate verification token: %w", err)
	}
	token := VerificationTokenPrefix + base64.RawURLEncoding.EncodeToString(buf)

	expiresAt := time.Now().UTC().Add(s.cfg.VerificationTTL)
	if err := s.verification.Put(ctx, t.ID, domain, token, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

// VerifyDomain checks the DNS TXT record at the well-known verification
// subdomain against the pending token. On success the token is cleared; the
// caller persists the verified domain via SetCustomDomain.
func (s *Service) VerifyDomain(ctx context.Context, t *Tenant, domain string) error {
	domain = strings.ToLower(strings.TrimSpace(domain))

	expected, err := s.verification.Get(ctx, t.ID, domain)
	if err != nil {
		return err
	}

	records, err := s.lookupTXT(ctx, s.cfg.VerificationPrefix+"."+domain)
	if err != nil {
		return fmt.Errorf("%w: txt lookup: %w", ErrVerificationFailed, err)
	}
	for _, record := range records {
		if record == expected {
			if err := s.verification.Delete(ctx, t.ID, domain); err != nil {
				return err
			}
			s.log.InfoContext(ctx, "custom domain verified",
				"tenant_id", t.ID, "domain", domain)
			return nil
		}
	}
	return ErrVerificationFailed
}

// SetCustomDomain persists a verified custom domain, invalidating both the
// old and new domain cache entries.
func (s *Service) SetCustomDomain(ctx context.Context, t *Tenant, domain string) error {
	domain = strings.ToLower(strings.TrimSpace(domain))

	if domain != "" {
		existing, err := s.store.FindByKey(ctx, KeyCustomDomain, domain)
		if err != nil && !errors.Is(err, ErrTenantNotFound) {
			return err
		}
		if err == nil && existing.ID != t.ID {
			return fmt.Errorf("%w: %q", ErrDomainTaken, domain)
		}
	}

	old := t.CustomDomain
	t.CustomDomain = domain
	t.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		t.CustomDomain = old
		return err
	}
	s.dir.InvalidateDomain(ctx, old)
	s.dir.Invalidate(ctx, t)
	return nil
}

// UpdateSettings merges new settings and persists them.
func (s *Service) UpdateSettings(ctx context.Context, t *Tenant, settings Settings) error {
	t.Settings = settings
	t.UpdatedAt = time.Now().UTC()
	return s.store.UpdateTenant(ctx, t)
}

// UpdateBranding merges new branding and persists it.
func (s *Service) UpdateBranding(ctx context.Context, t *Tenant, branding Branding) error {
	t.Branding = branding
	t.UpdatedAt = time.Now().UTC()
	return s.store.UpdateTenant(ctx, t)
}

func (s *Service) emit(ctx context.Context, e Event) {
	for _, hook := range s.hooks {
		hook(ctx, e)
	}
}
