// Package apperr defines the error envelope returned by the service layer
// and the classification of raw storage errors into it.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

type Code string

const (
	CodeValidation       Code = "validation"
	CodeMissingUser      Code = "missing_user"
	CodeDBNotInitialized Code = "db_not_initialized"
	CodeAccessDenied     Code = "access_denied"
	CodeNotFound         Code = "not_found"
	CodeLimitExceeded    Code = "limit_exceeded"
	CodeConflict         Code = "conflict"
	CodeTransient        Code = "transient"
	CodeUpstream         Code = "upstream"
)

// Error carries a user-facing message, a machine-readable code and optional
// details. The wrapped error, if any, is kept for logging and errors.Is.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	e := &Error{Code: code, Message: message, Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func Validation(message string) *Error { return New(CodeValidation, message) }

func NotFound(message string) *Error { return New(CodeNotFound, message) }

func AccessDenied(message string) *Error { return New(CodeAccessDenied, message) }

var ErrMissingUser = New(CodeMissingUser, "you need to sign in again")

var ErrDBNotInitialized = New(CodeDBNotInitialized, "storage is not available")

// CodeOf returns the code of the first *Error in err's chain, or the code
// Classify assigns to a raw error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Classify(err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return CodeOf(err) == CodeTransient
}

// Classify maps a raw error from storage or the network to a code.
func Classify(err error) Code {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return CodeUpstream
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	// SQLITE_BUSY / SQLITE_LOCKED are the serialization failures of this store.
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "sqlite_busy"),
		strings.Contains(msg, "serialization failure"):
		return CodeTransient
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "broken pipe"):
		return CodeTransient
	case strings.Contains(msg, "token is expired"),
		strings.Contains(msg, "jwt expired"),
		strings.Contains(msg, "unauthorized"):
		return CodeTransient
	case strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "foreign key constraint"),
		strings.Contains(msg, "check constraint"):
		return CodeConflict
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "database is closed"):
		return CodeDBNotInitialized
	}
	return CodeUpstream
}

// From converts any error into an *Error, keeping an existing envelope as is.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := Classify(err)
	switch code {
	case CodeTransient:
		return Wrap(code, "the service is temporarily unavailable, please retry", err)
	case CodeConflict:
		return Wrap(code, "the change conflicts with existing data", err)
	case CodeDBNotInitialized:
		return Wrap(code, ErrDBNotInitialized.Message, err)
	}
	return Wrap(code, "something went wrong", err)
}
