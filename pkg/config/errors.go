package config

import "errors"

var (
	// ErrNilPointer is returned when Load receives a nil destination.
	ErrNilPointer = errors.New("config: nil pointer passed to Load")

	// ErrParsingConfig is returned when environment parsing fails.
	ErrParsingConfig = errors.New("config: failed to parse environment")

	// ErrConfigNotLoaded is returned by Get when no Load for the requested
	// type has succeeded yet.
	ErrConfigNotLoaded = errors.New("config: configuration not loaded")
)
