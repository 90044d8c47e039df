// Package apierror is the error taxonomy shown to API clients. Anything that
// is not an *Error is reported as INTERNAL_SERVER_ERROR.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	Unauthorized        Code = "UNAUTHORIZED"
	NotFound            Code = "NOT_FOUND"
	BadRequest          Code = "BAD_REQUEST"
	TooManyRequests     Code = "TOO_MANY_REQUESTS"
	InternalServerError Code = "INTERNAL_SERVER_ERROR"
)

func (c Code) Status() int {
	switch c {
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a client-facing error. RetryAfter, when set, is sent to the client
// as a retry-after header.
type Error struct {
	Code       Code
	Message    string
	Cause      error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same code, so errors.Is(err,
// apierror.ErrNotFound) works for any NOT_FOUND error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Code == e.Code && t.Message == ""
}

func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

var (
	ErrUnauthorized        = &Error{Code: Unauthorized}
	ErrNotFound            = &Error{Code: NotFound}
	ErrBadRequest          = &Error{Code: BadRequest}
	ErrTooManyRequests     = &Error{Code: TooManyRequests}
	ErrInternalServerError = &Error{Code: InternalServerError}
)

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}

func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}

	return InternalServerError
}

// MessageOf is the client-facing message for err. Internal errors never leak
// their text.
func MessageOf(err error) string {
	if e, ok := As(err); ok && e.Code != InternalServerError {
		if e.Message != "" {
			return e.Message
		}

		return string(e.Code)
	}

	return "Something went wrong"
}
