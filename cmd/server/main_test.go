package main

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/pkg/billing"
	"github.com/formforge/formforge/pkg/gateway"
	"github.com/formforge/formforge/pkg/plan"
	"github.com/formforge/formforge/pkg/tenant"
)

// stubGateway satisfies billing.PaymentGateway without a network.
type stubGateway struct {
	mu        sync.Mutex
	cancelled []string
}

func (g *stubGateway) Sale(ctx context.Context, token string, amount decimal.Decimal, opts gateway.SaleOptions) (*gateway.Response, error) {
	return &gateway.Response{TransactionID: "txn-1"}, nil
}

func (g *stubGateway) AddToVault(ctx context.Context, token string, customer gateway.CustomerData) (*gateway.Response, error) {
	return &gateway.Response{CustomerVaultID: "vault-1"}, nil
}

func (g *stubGateway) UpdateVault(ctx context.Context, vaultID, token string, customer gateway.CustomerData) (*gateway.Response, error) {
	return &gateway.Response{CustomerVaultID: vaultID}, nil
}

func (g *stubGateway) CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) (*gateway.Response, error) {
	return &gateway.Response{SubscriptionID: "gwsub-1"}, nil
}

func (g *stubGateway) UpdateSubscription(ctx context.Context, subID string, amount decimal.Decimal) (*gateway.Response, error) {
	return &gateway.Response{SubscriptionID: subID}, nil
}

func (g *stubGateway) CancelSubscription(ctx context.Context, subID string) (*gateway.Response, error) {
	g.mu.Lock()
	g.cancelled = append(g.cancelled, subID)
	g.mu.Unlock()
	return &gateway.Response{}, nil
}

// composeServices builds the tenant and billing services wired the same way
// run does: plan limits resolved from the open subscription, tenant delete
// cascading into billing.
func composeServices(t *testing.T, gw billing.PaymentGateway) (*tenant.Service, *billing.Service, *tenant.MemoryStore) {
	t.Helper()

	registry, err := plan.NewRegistry(plan.DefaultCatalog())
	require.NoError(t, err)

	tenantStore := tenant.NewMemoryStore()
	dir := tenant.NewDirectory(tenantStore)
	t.Cleanup(func() { _ = dir.Close() })

	var tenantCfg tenant.Config
	tenantCfg.CentralDomain = "forms.test"
	tenantCfg.TrialDays = 14

	var billingSvc *billing.Service
	tenantSvc := tenant.NewService(tenantStore, dir, registry, tenantCfg,
		tenant.WithPlanResolver(func(ctx context.Context, tenantID uuid.UUID) string {
			return activePlanID(ctx, billingSvc, tenantID)
		}),
		tenant.WithCascade(func(ctx context.Context, tenantID uuid.UUID) error {
			return cancelBillingOnDelete(ctx, billingSvc, tenantID)
		}))

	billingSvc = billing.NewService(billing.NewMemoryStore(), gw, registry,
		&tenantHooks{store: tenantStore, svc: tenantSvc})
	return tenantSvc, billingSvc, tenantStore
}

func TestComposedServices(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("seat limit follows the subscribed plan", func(t *testing.T) {
		t.Parallel()

		gw := &stubGateway{}
		tenantSvc, billingSvc, _ := composeServices(t, gw)

		tn, err := tenantSvc.CreateTenant(ctx, "Acme", "acme", uuid.New())
		require.NoError(t, err)

		// Without a subscription the free plan governs: one seat, held by
		// the owner.
		err = tenantSvc.AddUser(ctx, tn, uuid.New(), tenant.RoleMember)
		require.ErrorIs(t, err, tenant.ErrLimitExceeded)

		_, err = billingSvc.Subscribe(ctx, tn.ID, "professional", plan.CycleMonthly, "tok_abc", gateway.CustomerData{})
		require.NoError(t, err)

		require.NoError(t, tenantSvc.AddUser(ctx, tn, uuid.New(), tenant.RoleMember))
	})

	t.Run("tenant delete cancels the open subscription", func(t *testing.T) {
		t.Parallel()

		gw := &stubGateway{}
		tenantSvc, billingSvc, _ := composeServices(t, gw)

		tn, err := tenantSvc.CreateTenant(ctx, "Closing", "closing", uuid.New())
		require.NoError(t, err)
		_, err = billingSvc.Subscribe(ctx, tn.ID, "starter", plan.CycleMonthly, "tok_abc", gateway.CustomerData{})
		require.NoError(t, err)

		require.NoError(t, tenantSvc.Delete(ctx, tn))

		history, err := billingSvc.History(ctx, tn.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, billing.StatusCanceled, history[0].Status)
		assert.Equal(t, "tenant deleted", history[0].CancelReason)
		assert.Contains(t, gw.cancelled, "gwsub-1", "gateway schedule was cancelled")
	})

	t.Run("delete without a subscription succeeds", func(t *testing.T) {
		t.Parallel()

		tenantSvc, _, _ := composeServices(t, &stubGateway{})
		tn, err := tenantSvc.CreateTenant(ctx, "Empty", "emptyco", uuid.New())
		require.NoError(t, err)

		require.NoError(t, tenantSvc.Delete(ctx, tn))
	})
}
