package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable is matched by every error returned after the
	// retry budget of a call is exhausted.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrCredentialUnavailable means the token endpoint did not yield a usable token.
	ErrCredentialUnavailable = errors.New("credential unavailable")

	// ErrUnsupportedMethod is returned before any attempt for methods outside the Method set.
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")
)

// UnavailableError carries the last error observed before the caller gave up.
type UnavailableError struct {
	Upstream string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("upstream %s unavailable after %d attempt(s): %v", e.Upstream, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// StatusError is a non-2xx response from an upstream.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status of the last failed attempt, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The retry loop returns the
// wrapped error as-is on the first occurrence.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
