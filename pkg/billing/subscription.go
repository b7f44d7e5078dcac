package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/formforge/formforge/pkg/plan"
)

// Status is a subscription's billing state.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusUnpaid   Status = "unpaid"
)

// Subscription is one tenant's recurring billing arrangement. GatewaySubID
// links it to the gateway's recurring schedule; it is empty for free plans,
// which have a local subscription row but nothing to charge.
type Subscription struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	PlanID       string          `json:"plan_id"`
	Status       Status          `json:"status"`
	Cycle        plan.Cycle      `json:"billing_cycle"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	GatewaySubID string          `json:"-"`
	VaultID      string          `json:"-"`

	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CancelReason       string     `json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCanceled reports whether the subscription has been canceled.
func (s *Subscription) IsCanceled() bool { return s.Status == StatusCanceled }

// IsValid reports whether the subscription entitles the tenant to its plan:
// active or trialing. Past-due subscriptions keep entitlement until the
// dunning flow gives up and cancels them.
func (s *Subscription) IsValid() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// Open reports whether the subscription still participates in billing.
func (s *Subscription) Open() bool {
	switch s.Status {
	case StatusActive, StatusTrialing, StatusPastDue:
		return true
	}
	return false
}

// HasEnded reports whether the current period is over.
func (s *Subscription) HasEnded() bool {
	return !s.CurrentPeriodEnd.IsZero() && time.Now().After(s.CurrentPeriodEnd)
}

// DaysUntilRenewal returns whole days until the period ends, floored at zero.
func (s *Subscription) DaysUntilRenewal() int {
	if s.CurrentPeriodEnd.IsZero() {
		return 0
	}
	d := time.Until(s.CurrentPeriodEnd)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// periodEnd computes the period end for a cycle starting at start.
func periodEnd(start time.Time, cycle plan.Cycle) time.Time {
	if cycle == plan.CycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// monthFrequency maps a billing cycle to the gateway's recurring frequency.
func monthFrequency(cycle plan.Cycle) int {
	if cycle == plan.CycleYearly {
		return 12
	}
	return 1
}
