package tola

import (
	"errors"
	"fmt"
)

// RemoteError is a non-2xx response from the TOLA API. The service
// answered, so the status code and body are available for logging.
type RemoteError struct {
	Status  int    `json:"status_code"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Body    string `json:"-"`
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("TOLA API error [%d]: %s (code: %s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("TOLA API error [%d]: %s", e.Status, e.Body)
}

// StatusCode returns the HTTP status of the remote error
func (e *RemoteError) StatusCode() int {
	return e.Status
}

// IsNotFound returns true for a 404 response
func (e *RemoteError) IsNotFound() bool {
	return e.Status == 404
}

// IsRateLimited returns true for a 429 response
func (e *RemoteError) IsRateLimited() bool {
	return e.Status == 429
}

// TransportError is a failure to reach the TOLA API at all: connection
// refused, DNS failure, timeout, or an unreadable response.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("TOLA transport error during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an error from the client should drive a
// retry. Remote and transport errors are both retryable for queue
// purposes; the distinction only matters for logging.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return true
	}
	var transport *TransportError
	return errors.As(err, &transport)
}
