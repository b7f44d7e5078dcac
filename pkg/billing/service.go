package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/formforge/formforge/pkg/gateway"
	"github.com/formforge/formforge/pkg/plan"
)

// PaymentGateway is the slice of the gateway client the billing service
// uses. *gateway.Client satisfies it.
type PaymentGateway interface {
	Sale(ctx context.Context, paymentToken string, amount decimal.Decimal, opts gateway.SaleOptions) (*gateway.Response, error)
	AddToVault(ctx context.Context, paymentToken string, customer gateway.CustomerData) (*gateway.Response, error)
	UpdateVault(ctx context.Context, vaultID, paymentToken string, customer gateway.CustomerData) (*gateway.Response, error)
	CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) (*gateway.Response, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, planAmount decimal.Decimal) (*gateway.Response, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*gateway.Response, error)
}

// TenantHooks is how billing reaches back into tenant state without owning
// it: activating a tenant after payment and tracking its vault reference.
type TenantHooks interface {
	Activate(ctx context.Context, tenantID uuid.UUID) error
	SetVaultRef(ctx context.Context, tenantID uuid.UUID, vaultRef string) error
	VaultRef(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Service orchestrates subscriptions between the local store and the
// payment gateway.
type Service struct {
	store Store
	gw    PaymentGateway
	plans *plan.Registry
	hooks TenantHooks
	log   *slog.Logger
	now   func() time.Time
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

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the billing service. All collaborators are required.
func NewService(store Store, gw PaymentGateway, plans *plan.Registry, hooks TenantHooks, opts ...ServiceOption) *Service {
	if store == nil || gw == nil || plans == nil || hooks == nil {
		panic("billing: store, gateway, plan registry, and tenant hooks are required")
	}
	s := &Service{
		store: store,
		gw:    gw,
		plans: plans,
		hooks: hooks,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe puts the tenant on a plan. The payment token is vaulted, a
// recurring schedule is created for paid plans, any prior open subscription
// is superseded, and the tenant is activated.
//
// Gateway calls happen before the local transaction; if the local write
// fails after a schedule was created, the schedule is cancelled best-effort.
func (s *Service) Subscribe(ctx context.Context, tenantID uuid.UUID, planID string, cycle plan.Cycle, paymentToken string, customer gateway.CustomerData) (*Subscription, error) {
	p, err := s.plans.Plan(planID)
	if err != nil {
		return nil, err
	}
	if !cycle.Valid() {
		return nil, fmt.Errorf("%w: %q", plan.ErrInvalidCycle, cycle)
	}
	amount, err := p.Price(cycle)
	if err != nil {
		return nil, err
	}

	var vaultID string
	if paymentToken != "" {
		resp, err := s.gw.AddToVault(ctx, paymentToken, customer)
		if err != nil {
			return nil, err
		}
		vaultID = resp.CustomerVaultID
		if err := s.hooks.SetVaultRef(ctx, tenantID, vaultID); err != nil {
			return nil, err
		}
	} else if amount.IsPositive() {
		return nil, ErrPaymentMethodRequired
	}

	now := s.now().UTC()
	var gatewaySubID string
	if amount.IsPositive() {
		resp, err := s.gw.CreateSubscription(ctx, gateway.SubscriptionRequest{
			CustomerVaultID: vaultID,
			PlanAmount:      amount,
			PlanPayments:    0, // recur until cancelled
			MonthFrequency:  monthFrequency(cycle),
			DayOfMonth:      now.Day(),
		})
		if err != nil {
			return nil, err
		}
		gatewaySubID = resp.SubscriptionID
	}

	sub := &Subscription{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		PlanID:             planID,
		Status:             StatusActive,
		Cycle:              cycle,
		Amount:             amount,
		Currency:           "USD",
		GatewaySubID:       gatewaySubID,
		VaultID:            vaultID,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd(now, cycle),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.store.Transact(ctx, func(tx Store) error {
		if _, err := tx.CancelOpen(ctx, tenantID, "superseded"); err != nil {
			return err
		}
		return tx.Insert(ctx, sub)
	})
	if err != nil {
		if gatewaySubID != "" {
			if _, cerr := s.gw.CancelSubscription(ctx, gatewaySubID); cerr != nil {
				s.log.ErrorContext(ctx, "failed to cancel orphaned gateway schedule",
					"gateway_subscription_id", gatewaySubID, "error", cerr)
			}
		}
		return nil, err
	}

	if err := s.hooks.Activate(ctx, tenantID); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription created",
		"tenant_id", tenantID, "plan", planID, "cycle", cycle,
		"amount", amount.StringFixed(2))
	return sub, nil
}

// ChangePlan moves the open subscription to a new plan at its current
// billing cycle. The gateway schedule amount is updated in place; the new
// rate applies from the next charge.
func (s *Service) ChangePlan(ctx context.Context, tenantID uuid.UUID, newPlanID string) (*Subscription, error) {
	p, err := s.plans.Plan(newPlanID)
	if err != nil {
		return nil, err
	}
	sub, err := s.store.Active(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	newAmount, err := p.Price(sub.Cycle)
	if err != nil {
		return nil, err
	}

	if sub.GatewaySubID != "" {
		if _, err := s.gw.UpdateSubscription(ctx, sub.GatewaySubID, newAmount); err != nil {
			return nil, err
		}
	}

	sub.PlanID = newPlanID
	sub.Amount = newAmount
	sub.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription plan changed",
		"tenant_id", tenantID, "plan", newPlanID,
		"amount", newAmount.StringFixed(2))
	return sub, nil
}

// Cancel stops the open subscription. The gateway schedule is cancelled
// best-effort: a gateway failure is logged but never blocks the local
// cancellation, since leaving the tenant billed for a dead subscription is
// worse than a stray schedule that the reconciler will report anyway.
func (s *Service) Cancel(ctx context.Context, tenantID uuid.UUID, reason string) (*Subscription, error) {
	sub, err := s.store.Active(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if sub.GatewaySubID != "" {
		if _, err := s.gw.CancelSubscription(ctx, sub.GatewaySubID); err != nil {
			s.log.ErrorContext(ctx, "gateway schedule cancellation failed",
				"tenant_id", tenantID,
				"gateway_subscription_id", sub.GatewaySubID, "error", err)
		}
	}

	now := s.now().UTC()
	sub.Status = StatusCanceled
	sub.CanceledAt = &now
	sub.CancelReason = reason
	sub.UpdatedAt = now
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription canceled",
		"tenant_id", tenantID, "reason", reason)
	return sub, nil
}

// Resume reactivates the tenant's most recently canceled subscription using
// the vaulted payment method. The billing period restarts from now; there is
// no credit for the unused remainder of the old period.
func (s *Service) Resume(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	sub, err := s.store.LatestCanceled(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	vaultID, err := s.hooks.VaultRef(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if vaultID == "" {
		return nil, ErrPaymentMethodRequired
	}

	now := s.now().UTC()
	if sub.Amount.IsPositive() {
		resp, err := s.gw.CreateSubscription(ctx, gateway.SubscriptionRequest{
			CustomerVaultID: vaultID,
			PlanAmount:      sub.Amount,
			PlanPayments:    0,
			MonthFrequency:  monthFrequency(sub.Cycle),
			DayOfMonth:      now.Day(),
		})
		if err != nil {
			return nil, err
		}
		sub.GatewaySubID = resp.SubscriptionID
	}

	sub.Status = StatusActive
	sub.VaultID = vaultID
	sub.CanceledAt = nil
	sub.CancelReason = ""
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = periodEnd(now, sub.Cycle)
	sub.UpdatedAt = now
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.hooks.Activate(ctx, tenantID); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription resumed", "tenant_id", tenantID)
	return sub, nil
}

// ProcessRenewal handles a successful recurring charge: the period restarts
// from now and any past-due state clears.
func (s *Service) ProcessRenewal(ctx context.Context, gatewaySubID string) (*Subscription, error) {
	sub, err := s.store.ByGatewaySubID(ctx, gatewaySubID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sub.Status = StatusActive
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = periodEnd(now, sub.Cycle)
	sub.UpdatedAt = now
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription renewed",
		"tenant_id", sub.TenantID, "period_end", sub.CurrentPeriodEnd)
	return sub, nil
}

// HandlePaymentFailure marks the subscription past due. Entitlement is kept
// while the gateway retries the charge.
func (s *Service) HandlePaymentFailure(ctx context.Context, gatewaySubID string) (*Subscription, error) {
	sub, err := s.store.ByGatewaySubID(ctx, gatewaySubID)
	if err != nil {
		return nil, err
	}

	sub.Status = StatusPastDue
	sub.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.log.WarnContext(ctx, "subscription payment failed",
		"tenant_id", sub.TenantID, "gateway_subscription_id", gatewaySubID)
	return sub, nil
}

// CancelByGateway records a cancellation the gateway reported. No call back
// to the gateway: the schedule there is already gone.
func (s *Service) CancelByGateway(ctx context.Context, gatewaySubID string) (*Subscription, error) {
	sub, err := s.store.ByGatewaySubID(ctx, gatewaySubID)
	if err != nil {
		return nil, err
	}
	if sub.IsCanceled() {
		return sub, nil
	}

	now := s.now().UTC()
	sub.Status = StatusCanceled
	sub.CanceledAt = &now
	sub.CancelReason = "canceled by gateway"
	sub.UpdatedAt = now
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription canceled by gateway",
		"tenant_id", sub.TenantID, "gateway_subscription_id", gatewaySubID)
	return sub, nil
}

// UpdatePaymentMethod swaps the tenant's vaulted payment method for the one
// behind the given token.
func (s *Service) UpdatePaymentMethod(ctx context.Context, tenantID uuid.UUID, paymentToken string, customer gateway.CustomerData) error {
	vaultID, err := s.hooks.VaultRef(ctx, tenantID)
	if err != nil {
		return err
	}

	if vaultID != "" {
		if _, err := s.gw.UpdateVault(ctx, vaultID, paymentToken, customer); err != nil {
			return err
		}
	} else {
		resp, err := s.gw.AddToVault(ctx, paymentToken, customer)
		if err != nil {
			return err
		}
		vaultID = resp.CustomerVaultID
		if err := s.hooks.SetVaultRef(ctx, tenantID, vaultID); err != nil {
			return err
		}
	}

	if sub, err := s.store.Active(ctx, tenantID); err == nil && sub.VaultID != vaultID {
		sub.VaultID = vaultID
		sub.UpdatedAt = s.now().UTC()
		if err := s.store.Update(ctx, sub); err != nil {
			return err
		}
	}

	s.log.InfoContext(ctx, "payment method updated", "tenant_id", tenantID)
	return nil
}

// OneTimePayment charges a token once, outside any subscription.
func (s *Service) OneTimePayment(ctx context.Context, tenantID uuid.UUID, paymentToken string, amount decimal.Decimal, description string) (*gateway.Response, error) {
	return s.gw.Sale(ctx, paymentToken, amount, gateway.SaleOptions{
		OrderID:          fmt.Sprintf("tenant-%s-%d", tenantID, s.now().Unix()),
		OrderDescription: description,
	})
}

// ActiveSubscription returns the tenant's open subscription.
func (s *Service) ActiveSubscription(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return s.store.Active(ctx, tenantID)
}

// History returns all of the tenant's subscriptions, newest first.
func (s *Service) History(ctx context.Context, tenantID uuid.UUID) ([]Subscription, error) {
	return s.store.History(ctx, tenantID)
}
