// Package billing manages tenant subscriptions on top of the payment
// gateway. A tenant holds at most one open subscription at a time; earlier
// subscriptions stay in the store as canceled history rows.
//
// The lifecycle is webhook-driven after the initial subscribe: the gateway's
// recurring engine charges the vaulted payment method and reports the
// outcome, and the webhook reconciler calls back into this package to renew,
// mark past due, or cancel.
//
// Gateway calls never run inside a held database transaction. When a local
// write fails after the gateway has already created a recurring schedule,
// the schedule is cancelled best-effort as compensation.
package billing
