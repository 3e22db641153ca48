package llm

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the provider failure taxonomy. ErrConfig is fatal
// and never retried; ErrTimeout and ErrMalformed are eligible for one
// fallback attempt on a secondary provider.
var (
	ErrConfig    = errors.New("provider configuration error")
	ErrTimeout   = errors.New("provider call timed out")
	ErrMalformed = errors.New("malformed provider response")
)

// ProviderError is an upstream API failure (4xx/5xx). Eligible for one
// fallback attempt.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Message)
}

// Fallbackable reports whether the error may be retried against a
// fallback provider.
func Fallbackable(err error) bool {
	if err == nil || errors.Is(err, ErrConfig) {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformed) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Classify maps raw adapter errors onto the taxonomy. Deadline expiry
// anywhere in the call chain is a Timeout; everything already typed
// passes through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}
	return err
}
