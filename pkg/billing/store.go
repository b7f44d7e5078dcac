package billing

import (
	"context"

	"github.com/google/uuid"
)

// Store persists subscriptions. Implementations must keep the single-open
// invariant in Insert's caller's hands: the service cancels prior open rows
// in the same transaction that inserts a new one.
type Store interface {
	Transact(ctx context.Context, fn func(Store) error) error

	Insert(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error

	// Active returns the tenant's open subscription (active, trialing, or
	// past due), or ErrNoActiveSubscription.
	Active(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// LatestCanceled returns the most recently canceled subscription, or
	// ErrSubscriptionNotFound.
	LatestCanceled(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// ByGatewaySubID returns the subscription linked to a gateway recurring
	// schedule, or ErrSubscriptionNotFound.
	ByGatewaySubID(ctx context.Context, gatewaySubID string) (*Subscription, error)

	// CancelOpen marks every open subscription of the tenant canceled with
	// the given reason and returns how many rows changed.
	CancelOpen(ctx context.Context, tenantID uuid.UUID, reason string) (int64, error)

	// History returns all subscriptions of the tenant, newest first.
	History(ctx context.Context, tenantID uuid.UUID) ([]Subscription, error)
}
