package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks provider failures that retrying may fix: rate
	// limiting, server errors, timeouts, network faults.
	ErrTransient = errors.New("transient provider error")
	// ErrPermanent marks provider failures that retrying cannot fix.
	ErrPermanent = errors.New("permanent provider error")
	// ErrNotFound means the provider has no product for the identifier.
	ErrNotFound = errors.New("product not found")
)

// ProviderError is a classified pricing provider failure. Use errors.Is with
// ErrTransient, ErrPermanent, or ErrNotFound to branch on the class.
type ProviderError struct {
	StatusCode int
	Message    string
	kind       error
	cause      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

// Unwrap exposes the class sentinel and the underlying cause to errors.Is.
func (e *ProviderError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// Transient reports whether retrying may help.
func (e *ProviderError) Transient() bool {
	return errors.Is(e.kind, ErrTransient)
}

func newProviderError(kind error, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		StatusCode: statusCode,
		Message:    message,
		kind:       kind,
		cause:      cause,
	}
}
