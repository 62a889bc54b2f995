package embedder

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedVector indicates that a provider returned a vector that cannot be
// used for similarity search (missing, empty, or containing NaN/Inf values).
var ErrMalformedVector = errors.New("malformed embedding vector")

// ProviderError describes a failed call to an embedding provider.
//
// StatusCode is the HTTP status returned by the provider, or 0 when the
// request never produced a response (DNS failure, timeout, cancellation).
type ProviderError struct {
	// Provider is the provider name, e.g. "openai".
	Provider string

	// StatusCode is the HTTP status code, 0 if unavailable.
	StatusCode int

	// Message is the provider's error message.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error returns a formatted error message.
func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CheckVector validates a vector returned by a provider.
//
// A vector is malformed when it is nil, has zero length, or contains NaN or
// infinite components.
func CheckVector(v []float64) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrMalformedVector)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite value at position %d", ErrMalformedVector, i)
		}
	}
	return nil
}
