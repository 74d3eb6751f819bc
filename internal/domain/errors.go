package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for ledger operations. Handlers map these to HTTP statuses
// with errors.Is; services wrap them with context via fmt.Errorf("%w: ...").
var (
	ErrValidation          = errors.New("validation error")
	ErrUnauthorized        = errors.New("not allowed")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")

	// ErrExternalDependency marks failures of non-essential collaborators
	// (proof upload, notification delivery). Callers log it and continue;
	// it never aborts a financial mutation.
	ErrExternalDependency = errors.New("external dependency failed")
)

func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InsufficientBalancef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientBalance, fmt.Sprintf(format, args...))
}
