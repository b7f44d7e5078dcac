// Package gateway is the payment gateway client. It speaks the NMI-style
// form-encoded transaction protocol: every operation is a POST of key/value
// pairs, and the gateway answers with a query-string body whose `response`
// field is 1 (approved), 2 (declined), or 3 (error).
//
// Card data never touches this package. Clients tokenize card details in the
// browser and hand the backend a one-time payment token; long-term payment
// methods live in the gateway's customer vault and are referenced by vault ID.
//
// A declined transaction surfaces as *DeclineError, which matches
// errors.Is(err, ErrPaymentDeclined). Transport and gateway-side failures
// surface as ErrGatewayUnavailable.
package gateway
