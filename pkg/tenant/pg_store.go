package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	fpg "github.com/formforge/formforge/pkg/pg"
)

// pgQuerier is the subset of pgxpool.Pool and pgx.Tx the store needs, so the
// same methods run inside and outside transactions.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db pgQuerier
}

// NewPGStore creates a Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

// Transact runs fn inside a database transaction. Nested calls reuse the
// surrounding transaction via savepoints.
func (s *PGStore) Transact(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tenant: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&PGStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tenant: commit tx: %w", err)
	}
	return nil
}

const tenantColumns = `id, name, slug, subdomain, custom_domain, status,
	trial_ends_at, settings, branding, vault_ref, created_at, updated_at, deleted_at`

func (s *PGStore) CreateTenant(ctx context.Context, t *Tenant) error {
	settings, branding, err := marshalTenantJSON(t)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, NULL)`,
		t.ID, t.Name, t.Slug, t.Subdomain, t.CustomDomain, t.Status,
		t.TrialEndsAt, settings, branding, t.VaultRef, t.CreatedAt, t.UpdatedAt,
	)
	return mapTenantConstraint(err, t)
}

func (s *PGStore) UpdateTenant(ctx context.Context, t *Tenant) error {
	settings, branding, err := marshalTenantJSON(t)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE tenants
		SET name = $2, slug = $3, subdomain = $4, custom_domain = NULLIF($5, ''),
			status = $6, trial_ends_at = $7, settings = $8, branding = $9,
			vault_ref = $10, updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL`,
		t.ID, t.Name, t.Slug, t.Subdomain, t.CustomDomain, t.Status,
		t.TrialEndsAt, settings, branding, t.VaultRef, t.UpdatedAt,
	)
	if err != nil {
		return mapTenantConstraint(err, t)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (s *PGStore) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tenants SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("tenant: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (s *PGStore) FindByKey(ctx context.Context, kind KeyKind, value string) (*Tenant, error) {
	var where string
	var arg any = strings.ToLower(value)
	switch kind {
	case KeyID:
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, ErrTenantNotFound
		}
		where, arg = "id = $1", id
	case KeySubdomain:
		where = "subdomain = $1"
	case KeyCustomDomain:
		where = "custom_domain = $1"
	default:
		return nil, fmt.Errorf("tenant: unknown key kind %q", kind)
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE `+where+` AND deleted_at IS NULL`, arg)
	return scanTenant(row)
}

func (s *PGStore) AddMember(ctx context.Context, m Member) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tenant_members (tenant_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)`,
		m.TenantID, m.UserID, m.Role, m.CreatedAt,
	)
	if fpg.IsDuplicateKeyError(err) {
		return ErrMemberExists
	}
	if err != nil {
		return fmt.Errorf("tenant: add member: %w", err)
	}
	return nil
}

func (s *PGStore) RemoveMember(ctx context.Context, tenantID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM tenant_members WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID)
	if err != nil {
		return fmt.Errorf("tenant: remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (s *PGStore) SetMemberRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tenant_members SET role = $3 WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID, role)
	if err != nil {
		return fmt.Errorf("tenant: set member role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (s *PGStore) GetMember(ctx context.Context, tenantID, userID uuid.UUID) (*Member, error) {
	var m Member
	err := s.db.QueryRow(ctx, `
		SELECT tenant_id, user_id, role, created_at
		FROM tenant_members
		WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	).Scan(&m.TenantID, &m.UserID, &m.Role, &m.CreatedAt)
	if fpg.IsNotFoundError(err) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: get member: %w", err)
	}
	return &m, nil
}

func (s *PGStore) CountMembers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM tenant_members WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("tenant: count members: %w", err)
	}
	return n, nil
}

func (s *PGStore) CountOwners(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM tenant_members WHERE tenant_id = $1 AND role = $2`,
		tenantID, RoleOwner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("tenant: count owners: %w", err)
	}
	return n, nil
}

func (s *PGStore) RemoveAllMembers(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM tenant_members WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("tenant: remove all members: %w", err)
	}
	return nil
}

func marshalTenantJSON(t *Tenant) (settings, branding []byte, err error) {
	if settings, err = json.Marshal(t.Settings); err != nil {
		return nil, nil, fmt.Errorf("tenant: marshal settings: %w", err)
	}
	if branding, err = json.Marshal(t.Branding); err != nil {
		return nil, nil, fmt.Errorf("tenant: marshal branding: %w", err)
	}
	return settings, branding, nil
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var (
		t            Tenant
		customDomain *string
		settings     []byte
		branding     []byte
		vaultRef     *string
	)
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Subdomain, &customDomain,
		&t.Status, &t.TrialEndsAt, &settings, &branding, &vaultRef,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if fpg.IsNotFoundError(err) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: scan: %w", err)
	}
	if customDomain != nil {
		t.CustomDomain = *customDomain
	}
	if vaultRef != nil {
		t.VaultRef = *vaultRef
	}
	if err := json.Unmarshal(settings, &t.Settings); err != nil {
		return nil, fmt.Errorf("tenant: unmarshal settings: %w", err)
	}
	if err := json.Unmarshal(branding, &t.Branding); err != nil {
		return nil, fmt.Errorf("tenant: unmarshal branding: %w", err)
	}
	return &t, nil
}

func mapTenantConstraint(err error, t *Tenant) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "custom_domain") {
			return fmt.Errorf("%w: %q", ErrDomainTaken, t.CustomDomain)
		}
		return fmt.Errorf("%w: %q", ErrSubdomainTaken, t.Subdomain)
	}
	return fmt.Errorf("tenant: %w", err)
}
