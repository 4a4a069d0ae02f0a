package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrRecoverable marks provider failures (timeouts, 5xx, rate limits) that are safe to retry.
	ErrRecoverable = errors.New("recoverable provider error")
	// ErrTerminal marks provider failures (declines, invalid instruments) that need human review.
	ErrTerminal = errors.New("terminal provider error")
)

// ProviderError describes a failed call to an external payment provider.
type ProviderError struct {
	Recoverable bool
	StatusCode  int
	Code        string
	Message     string
	Err         error
}

func (e *ProviderError) Error() string {
	kind := "terminal"
	if e.Recoverable {
		kind = "recoverable"
	}
	msg := fmt.Sprintf("provider error (%s, status %d)", kind, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the ErrRecoverable / ErrTerminal classes.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrRecoverable:
		return e.Recoverable
	case ErrTerminal:
		return !e.Recoverable
	}
	return false
}

// IsRecoverable reports whether err is a provider failure that may be retried.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsTerminal reports whether err is a provider failure that must not be retried automatically.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal)
}
