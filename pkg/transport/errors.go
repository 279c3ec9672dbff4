package transport

import (
	"errors"
	"fmt"
)

// ErrUnexpectedResponse marks a response that arrived with a success status
// but whose body could not be decoded into the shape the caller expected.
var ErrUnexpectedResponse = errors.New("unexpected response body")

// HTTPError is returned when the service answers with any status other than
// the one the operation expects.
//
//	var httpErr *transport.HTTPError
//	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound { ... }
type HTTPError struct {
	Op         string // Operation name, e.g. "get user"
	Method     string // HTTP method of the failed request
	Path       string // Request path relative to the base URL
	StatusCode int    // Status code returned by the service
	Expected   int    // Status code the operation treats as success
	Message    string // Upstream error message, or a prefix of the raw body
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s %s: unexpected status %d (want %d)", e.Op, e.Method, e.Path, e.StatusCode, e.Expected)
	}
	return fmt.Sprintf("%s: %s %s: unexpected status %d (want %d): %s", e.Op, e.Method, e.Path, e.StatusCode, e.Expected, e.Message)
}

// TransportError is returned when no usable response was obtained: DNS and
// connection failures, timeouts, unreadable bodies and undecodable payloads.
type TransportError struct {
	Op     string
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is an *HTTPError carrying the given status code.
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == status
}
