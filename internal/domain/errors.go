package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateSource     = errors.New("source already added")
	ErrCapacityExceeded    = errors.New("composition is at capacity")
	ErrInvalidHero         = errors.New("invalid hero selection")
	ErrNotReady            = errors.New("composition is not ready")
	ErrConcurrencyConflict = errors.New("generation already has an active job")
)

// ProviderError wraps a failure from an external AI collaborator. Transient
// failures (timeouts, rate limits) are retried by the orchestrator; permanent
// ones terminate the job immediately.
type ProviderError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s provider error: %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TransientProviderError marks err as retryable.
func TransientProviderError(provider string, err error) error {
	return &ProviderError{Provider: provider, Transient: true, Err: err}
}

// PermanentProviderError marks err as terminal.
func PermanentProviderError(provider string, err error) error {
	return &ProviderError{Provider: provider, Transient: false, Err: err}
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}
