package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSecurityKey is returned when the client is built without a
	// security key.
	ErrMissingSecurityKey = errors.New("gateway security key is required")

	// ErrPaymentDeclined is the sentinel matched by every declined or
	// rejected transaction. Use errors.As with *DeclineError for the
	// gateway's reason text and code.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrGatewayUnavailable is returned when the gateway cannot be reached
	// or answers with something other than a parseable response.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// DeclineError carries the gateway's decline reason.
type DeclineError struct {
	// Text is the gateway's human-readable responsetext.
	Text string
	// Code is the gateway's numeric response_code (e.g. 200 series for
	// declines, 300 series for gateway rejections).
	Code string
}

func (e *DeclineError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("payment declined: %s", e.Text)
	}
	return fmt.Sprintf("payment declined: %s (code %s)", e.Text, e.Code)
}

func (e *DeclineError) Unwrap() error { return ErrPaymentDeclined }
