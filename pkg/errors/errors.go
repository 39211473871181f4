// SPDX-License-Identifier: Apache-2.0
// Package errors provides the typed error taxonomy used across Switchyard.
// Every failure that crosses a package boundary is an *Error; the code decides
// retry eligibility and the HTTP status the route layer maps it to.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Switchyard errors for retry decisions and monitoring.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates an unknown adapter or tool. Never retried.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAuthMissing indicates a required credential was absent. Never retried.
	CodeAuthMissing ErrorCode = "AUTH_MISSING"

	// CodeRateLimited indicates the sliding-window ceiling was met. Never
	// retried, and the rejected attempt does not consume a slot.
	CodeRateLimited ErrorCode = "RATE_LIMITED"

	// CodeTimeout indicates an invocation exceeded its deadline. Transient.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeAdapterUnavailable indicates the adapter location could not be
	// resolved. Transient.
	CodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"

	// CodeEmptyToolSet indicates the adapter resolved but exposed zero tools.
	// Transient.
	CodeEmptyToolSet ErrorCode = "EMPTY_TOOLSET"

	// CodeInvocationFailed indicates the adapter's own call failed. Transient.
	CodeInvocationFailed ErrorCode = "INVOCATION_FAILED"
)

// Error is a typed error with context for observability. It implements the
// error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new Error with the given code, message, and cause. The
// Recoverable flag is derived from the code; WithRecoverable overrides it.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Attributes:  make(map[string]string),
		Recoverable: codeRecoverable(code),
		StatusCode:  codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *Error) WithAttribute(key, value string) *Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable overrides the code-derived recoverable flag.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// AsError attempts to convert err to an *Error, wrapping unknown errors as
// an invocation failure (the adapter's own call failed).
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*Error); ok {
		return se
	}
	return New(CodeInvocationFailed, "adapter call failed", err)
}

// IsRecoverable reports whether err should be retried. Unknown errors are
// treated as invocation failures and retried.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	return AsError(err).Recoverable
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeRecoverable encodes the retry taxonomy: policy failures and lookup
// misses stop immediately, everything transient is retried.
func codeRecoverable(code ErrorCode) bool {
	switch code {
	case CodeTimeout, CodeAdapterUnavailable, CodeEmptyToolSet, CodeInvocationFailed:
		return true
	default:
		return false
	}
}

// codeToStatusCode maps error codes to HTTP status codes for the route layer.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeAuthMissing:
		return 401
	case CodeInvalidInput:
		return 400
	case CodeTimeout:
		return 408
	case CodeRateLimited:
		return 429
	case CodeAdapterUnavailable, CodeEmptyToolSet:
		return 503
	default:
		return 500
	}
}
