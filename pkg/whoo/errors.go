package whoo

import (
	"errors"
	"fmt"

	"github.com/benmeehan/whoo-agent/pkg/transport"
)

// ErrTokenRequired is wrapped by the AuthError returned from any
// authenticated method called on a client without a token.
var ErrTokenRequired = errors.New("token required")

// ErrNoAccessToken is wrapped by the AuthError returned when a login or
// account creation response carries no access token.
var ErrNoAccessToken = errors.New("response has no access token")

// HTTPError is a response with a status other than the operation's success status.
type HTTPError = transport.HTTPError

// TransportError is a failed exchange: network error, timeout or unusable body.
type TransportError = transport.TransportError

// AuthError reports a missing or rejected credential.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("whoo: %s: authentication failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NotFoundError is a valid response that contains no matching result.
type NotFoundError struct {
	Op    string
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("whoo: %s: no result for %q", e.Op, e.Query)
}

// ValidationError reports arguments the service would not accept, detected
// before any request is made.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("whoo: %s: invalid arguments: %s", e.Op, e.Reason)
}

// Kind enumerates the failure classes a caller can branch on.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindHTTP
	KindTransport
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindHTTP:
		return "http"
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// KindOf classifies err. An AuthError wrapping an HTTPError is KindAuth.
func KindOf(err error) Kind {
	var (
		authErr       *AuthError
		notFoundErr   *NotFoundError
		validationErr *ValidationError
		httpErr       *HTTPError
		transportErr  *TransportError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &notFoundErr):
		return KindNotFound
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &httpErr):
		return KindHTTP
	case errors.As(err, &transportErr):
		return KindTransport
	default:
		return KindUnknown
	}
}
