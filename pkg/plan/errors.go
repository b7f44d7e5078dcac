package plan

import "errors"

var (
	// ErrPlanNotFound is returned when a plan ID is not in the registry.
	ErrPlanNotFound = errors.New("plan: plan not found")

	// ErrInvalidCatalog is returned when a plan catalog fails validation.
	ErrInvalidCatalog = errors.New("plan: invalid plan catalog")

	// ErrInvalidCycle is returned for billing cycles other than monthly/yearly.
	ErrInvalidCycle = errors.New("plan: invalid billing cycle")
)
