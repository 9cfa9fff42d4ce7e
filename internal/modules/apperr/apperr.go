// Package apperr carries the error taxonomy shared by every module: a small
// set of kinds that map one-to-one onto HTTP status codes at the edge, so
// handlers never have to sniff error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation policy and HTTP mapping.
type Kind int

const (
	KindUnknown    Kind = iota
	KindValidation      // missing/malformed request fields, rejected before side effects
	KindNotFound        // order/coupon/product absent
	KindConflict        // insufficient stock, exhausted coupon, invalid transition
	KindPermission      // acting user does not own the resource and is not admin
	KindExternal        // payment-provider call failed or timed out
	KindSignature       // webhook signature mismatch, never applied to state
)

// Error is a kinded error. The wrapped cause, if any, is reachable via
// errors.Unwrap.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two apperr values by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

func Permission(format string, args ...interface{}) *Error {
	return newf(KindPermission, format, args...)
}

func External(err error, format string, args ...interface{}) *Error {
	e := newf(KindExternal, format, args...)
	e.Err = err
	return e
}

func Signature(format string, args ...interface{}) *Error {
	return newf(KindSignature, format, args...)
}

// Wrap attaches a cause to a kinded error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code handlers should respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusUnprocessableEntity
	case KindPermission:
		return http.StatusForbidden
	case KindExternal:
		return http.StatusBadGateway
	case KindSignature:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
