// Package apperrors defines the error taxonomy shared by the service layer:
// not-found, forbidden, invalid-state, validation and transient failures.
// Handlers map these to HTTP statuses; transient errors are the only retryable
// kind.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown      Kind = iota
	KindNotFound          // unknown id
	KindForbidden         // ownership or assignment mismatch
	KindInvalidState      // illegal state-machine transition
	KindValidation        // empty or malformed input
	KindTransient         // network/location failure, retryable
)

// Error carries a taxonomy kind alongside the message
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// Transient wraps a retryable failure, preserving the cause for %w chains
func Transient(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindTransient, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf returns the taxonomy kind of err, or KindUnknown for plain errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsTransient(err error) bool    { return KindOf(err) == KindTransient }

// HTTPStatus maps an error to the response status a handler should emit
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
