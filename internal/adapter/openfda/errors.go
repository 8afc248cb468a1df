package openfda

import (
	"errors"
	"fmt"
)

// TransientError indicates a failure worth retrying: a network error, an
// HTTP 5xx, or a rate-limit response. Status is 0 when the request never
// produced a response.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient: status %d", e.Status)
	}
	return fmt.Errorf("transient: %w", e.Err).Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MalformedError indicates a response that cannot be interpreted: an
// undecodable body or an unexpected client-error status. Not retried;
// triggers immediate fallback.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Errorf("malformed response: %w", e.Err).Error()
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
