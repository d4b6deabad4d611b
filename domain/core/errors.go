package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrProtocolNotFound = fmt.Errorf("%w: protocol", ErrNotFound)
	ErrRunNotFound      = fmt.Errorf("%w: test run", ErrNotFound)
	ErrSeriesNotFound   = fmt.Errorf("%w: measurement series", ErrNotFound)
	ErrMetricNotFound   = fmt.Errorf("%w: metric", ErrNotFound)

	// Configuration errors (fatal for the affected call)
	ErrInvalidDefinition = errors.New("invalid protocol definition")
	ErrUnknownOperator   = errors.New("unknown comparison operator")
	ErrUnknownModel      = errors.New("unknown candidate model")
	ErrUnknownTarget     = errors.New("criterion references unknown target")

	// Data errors (non-fatal, collected into reports)
	ErrInsufficientData = errors.New("insufficient data points")
	ErrSingularFit      = errors.New("fit is singular or degenerate")
	ErrFitTimeout       = errors.New("fit exceeded deadline")

	// Lifecycle errors
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRunImmutable      = errors.New("test run no longer accepts measurements")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewDefinitionError(element string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidDefinition, element, reason)
}

func NewTransitionError(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrUnknownOperator) ||
		errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, ErrUnknownTarget)
}

func IsDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrSingularFit) ||
		errors.Is(err, ErrFitTimeout)
}

func IsTransitionError(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
