package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every error the service surfaces. The set is closed.
type Kind int

const (
	Configuration Kind = iota + 1
	UpstreamUnavailable
	UpstreamRejected
	NotFound
	AlreadyLinked
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration_error"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case UpstreamRejected:
		return "upstream_rejected"
	case NotFound:
		return "not_found"
	case AlreadyLinked:
		return "already_linked"
	default:
		return "unknown"
	}
}

// Error carries a Kind through the gateway, service and handler layers.
// Status is the upstream HTTP status when one was observed, 0 otherwise.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match on Kind so that errors.Is(err, &Error{Kind: NotFound})
// works regardless of Op or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithStatus is Wrap plus the upstream HTTP status.
func WithStatus(kind Kind, op string, status int, err error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusOf returns the upstream status recorded in err's chain, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FromHTTPStatus maps a non-2xx upstream response to a Kind.
func FromHTTPStatus(status int) Kind {
	switch {
	case status == 404:
		return NotFound
	case status >= 400 && status < 500:
		return UpstreamRejected
	default:
		return UpstreamUnavailable
	}
}

// HTTPStatus is the response status for err. Errors without a Kind are 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case UpstreamUnavailable:
		return http.StatusBadGateway
	case UpstreamRejected:
		if status := StatusOf(err); status >= 400 && status < 500 {
			return status
		}
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case AlreadyLinked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
