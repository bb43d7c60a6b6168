// Package apperr holds the error categories shared by search, streaming and
// transcoding, plus their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	Internal Kind = iota
	InvalidQuery
	QuotaExceeded
	UnrecoverableProvider
	TransientProvider
	ExtractionFailure
	ServiceUnavailable
	TranscodeFailure
	PermissionDenied
	NotFound
)

func (k Kind) String() string {
	switch k {
	case InvalidQuery:
		return "invalid_query"
	case QuotaExceeded:
		return "quota_exceeded"
	case UnrecoverableProvider:
		return "unrecoverable_provider"
	case TransientProvider:
		return "transient_provider"
	case ExtractionFailure:
		return "extraction_failure"
	case ServiceUnavailable:
		return "service_unavailable"
	case TranscodeFailure:
		return "transcode_failure"
	case PermissionDenied:
		return "permission_denied"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a Kind, a message that is safe to show to a caller,
// and optionally the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error without a cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind and public message to err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the public message for err. Errors that are not *Error
// never leak their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "Internal server error"
}

// HTTPStatus maps an error onto the status code returned to clients.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidQuery:
		return http.StatusBadRequest
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ServiceUnavailable, QuotaExceeded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
