package vtu

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNoProviders        = errors.New("no provider available")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// AttemptError records a single failed provider attempt.
type AttemptError struct {
	ProviderID   uuid.UUID
	ProviderName string
	Err          error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.ProviderName, e.Err)
}

func (e AttemptError) Unwrap() error {
	return e.Err
}

// ExhaustedError aggregates the attempt errors after every eligible provider
// failed. It exposes the attempt count and the last underlying cause.
type ExhaustedError struct {
	Attempts int
	Errors   []AttemptError
}

func (e *ExhaustedError) Error() string {
	if len(e.Errors) == 0 {
		return "all providers failed"
	}
	return fmt.Sprintf("all %d providers failed, last error: %v", e.Attempts, e.Errors[len(e.Errors)-1].Err)
}

// Unwrap returns the last underlying attempt error.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1].Err
}
