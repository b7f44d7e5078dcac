// Package webhook receives asynchronous events from the payment gateway and
// reconciles local subscription state with them.
//
// The handler's response discipline matters more than its body: the gateway
// retries anything but a 2xx. A 401 is returned only for a bad signature, a
// 500 only for an unexpected internal failure. Everything else — unknown
// event types, events for subscriptions this environment has never seen,
// duplicate deliveries — is logged and acknowledged with 200 so the gateway
// stops retrying things that will never succeed.
package webhook
