package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/pkg/tenant"
)

func testConfig() tenant.Config {
	return tenant.Config{
		CentralDomain:      "forms.test",
		CentralDomains:     []string{"www.forms.test"},
		ReservedSubdomains: []string{"www", "api", "admin", "app", "mail"},
		TrialDays:          14,
		CacheTTL:           5 * time.Minute,
		VerificationPrefix: "_formforge-verify",
		VerificationTTL:    24 * time.Hour,
	}
}

func seedTenant(t *testing.T, store *tenant.MemoryStore, subdomain, customDomain string) *tenant.Tenant {
	t.Helper()

	now := time.Now().UTC()
	tn := &tenant.Tenant{
		ID:           uuid.New(),
		Name:         subdomain,
		Slug:         subdomain,
		Subdomain:    subdomain,
		CustomDomain: customDomain,
		Status:       tenant.StatusActive,
		Settings:     tenant.DefaultSettings(),
		Branding:     tenant.DefaultBranding(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.CreateTenant(context.Background(), tn))
	return tn
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	store := tenant.NewMemoryStore()
	dir := tenant.NewDirectory(store)
	t.Cleanup(func() { _ = dir.Close() })

	acme := seedTenant(t, store, "acme", "")
	globex := seedTenant(t, store, "globex", "forms.globex.com")
	// A row squatting a reserved name must still never resolve.
	seedTenant(t, store, "admin", "")

	r := tenant.NewResolver(dir, testConfig())
	ctx := context.Background()

	t.Run("subdomain resolves", func(t *testing.T) {
		t.Parallel()

		got, err := r.Resolve(ctx, "acme.forms.test", "")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("host port is ignored", func(t *testing.T) {
		t.Parallel()

		got, err := r.Resolve(ctx, "ACME.forms.test:8443", "")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("custom domain wins over header", func(t *testing.T) {
		t.Parallel()

		got, err := r.Resolve(ctx, "forms.globex.com", acme.ID.String())
		require.NoError(t, err)
		assert.Equal(t, globex.ID, got.ID)
	})

	t.Run("custom domain miss falls through to header", func(t *testing.T) {
		t.Parallel()

		got, err := r.Resolve(ctx, "unknown.example.com", acme.ID.String())
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("reserved subdomain is absent even when a row exists", func(t *testing.T) {
		t.Parallel()

		got, err := r.Resolve(ctx, "admin.forms.test", "")
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)
		assert.Nil(t, got)
	})

	t.Run("reserved subdomain never falls through to header", func(t *testing.T) {
		t.Parallel()

		_, err := r.Resolve(ctx, "api.forms.test", acme.ID.String())
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("unknown subdomain is not found", func(t *testing.T) {
		t.Parallel()

		_, err := r.Resolve(ctx, "nope.forms.test", "")
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("central domain without header has no tenant", func(t *testing.T) {
		t.Parallel()

		got, err := r.Resolve(ctx, "forms.test", "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("extra central host has no tenant", func(t *testing.T) {
		t.Parallel()

		got, err := r.Resolve(ctx, "www.forms.test", "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("header resolves on central domain", func(t *testing.T) {
		t.Parallel()

		got, err := r.Resolve(ctx, "forms.test", acme.ID.String())
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
	})

	t.Run("header with unknown id is not found", func(t *testing.T) {
		t.Parallel()

		_, err := r.Resolve(ctx, "forms.test", uuid.NewString())
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})
}
