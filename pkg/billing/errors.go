package billing

import "errors"

var (
	// ErrSubscriptionNotFound is returned when no subscription matches a
	// lookup.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrNoActiveSubscription is returned when a tenant has no open
	// subscription.
	ErrNoActiveSubscription = errors.New("tenant has no active subscription")

	// ErrNotCanceled is returned when resuming a subscription that is not
	// canceled.
	ErrNotCanceled = errors.New("subscription is not canceled")

	// ErrPaymentMethodRequired is returned when an operation needs a vaulted
	// payment method and the tenant has none on file.
	ErrPaymentMethodRequired = errors.New("no payment method on file")
)
