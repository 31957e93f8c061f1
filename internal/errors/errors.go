package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds for the broker. Every failure surfaced to a caller wraps one of these.
var (
	// ErrConfig is a missing or invalid startup setting. Fatal.
	ErrConfig = errors.New("configuration error")
	// ErrValidation is malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrAuth is an invalid, expired or mismatched state, cookie or session.
	ErrAuth = errors.New("not authenticated")
	// ErrCSRF is a double-submit token mismatch.
	ErrCSRF = errors.New("csrf token mismatch")
	// ErrOrigin is a mutating request from an origin that is not allow-listed.
	ErrOrigin = errors.New("origin not allowed")
	// ErrUpstream is a failure of the tracker API or its token endpoint.
	ErrUpstream = errors.New("upstream error")
	// ErrNotFound is an unknown route parameter such as an unsupported provider.
	ErrNotFound = errors.New("not found")
)

// Error carries a kind, the failing operation and an optional public message.
// Err holds internal detail and is never shown to clients.
type Error struct {
	Kind   error
	Op     string
	Public string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Public != "" {
		msg += ": " + e.Public
	}
	if e.Op != "" {
		msg = "[" + e.Op + "] " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches on the kind so errors.Is(err, ErrAuth) works through wrapping.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, op, public string, err error) *Error {
	return &Error{Kind: kind, Op: op, Public: public, Err: err}
}

func Config(op, public string) error {
	return newError(ErrConfig, op, public, nil)
}

// Validation returns an error whose reason is safe to show to the caller.
func Validation(op, reason string) error {
	return newError(ErrValidation, op, reason, nil)
}

func Auth(op string, err error) error {
	return newError(ErrAuth, op, "", err)
}

func CSRF(op string) error {
	return newError(ErrCSRF, op, "", nil)
}

func Origin(op, origin string) error {
	return newError(ErrOrigin, op, "", fmt.Errorf("origin %q", origin))
}

func Upstream(op string, err error) error {
	return newError(ErrUpstream, op, "", err)
}

func NotFound(op, what string) error {
	return newError(ErrNotFound, op, "", fmt.Errorf("%s", what))
}

// HTTPStatus maps an error onto the status code returned to the client.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrCSRF), errors.Is(err, ErrOrigin):
		return http.StatusForbidden
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine readable error code used in JSON error bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrAuth):
		return "unauthenticated"
	case errors.Is(err, ErrCSRF):
		return "csrf_failed"
	case errors.Is(err, ErrOrigin):
		return "origin_forbidden"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}

// PublicMessage returns text that is safe to send to a browser. Wrapped
// detail (upstream bodies, tokens) never appears in it.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrValidation && e.Public != "" {
		return e.Public
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid request"
	case errors.Is(err, ErrAuth):
		return "not authenticated"
	case errors.Is(err, ErrCSRF):
		return "invalid csrf token"
	case errors.Is(err, ErrOrigin):
		return "origin not allowed"
	case errors.Is(err, ErrUpstream):
		return "upstream service unavailable"
	case errors.Is(err, ErrNotFound):
		return "not found"
	default:
		return "internal error"
	}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
