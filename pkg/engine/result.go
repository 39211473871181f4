// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"time"

	"github.com/switchyard-io/switchyard/pkg/errors"
)

// Result is the uniform outcome of one execute call's full attempt sequence.
// It is always returned, never thrown past the engine boundary: callers
// inspect Success and Err instead of handling panics or raw errors.
type Result struct {
	Success bool `json:"success"`

	// Data carries the adapter's output on success; Err classifies the final
	// failure otherwise.
	Data any           `json:"data,omitempty"`
	Err  *errors.Error `json:"error,omitempty"`

	AdapterID       string    `json:"adapter_id"`
	Tool            string    `json:"tool_name"`
	RequestID       string    `json:"request_id"`
	Timestamp       time.Time `json:"timestamp"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`

	// Attempts is how many invocation attempts were made (0 when the call
	// was stopped by the policy gate).
	Attempts int `json:"attempts"`

	// RequestCount is the adapter's total request count after this call.
	RequestCount int64 `json:"request_count"`
}

// ErrorCode returns the failure code, or "" for successful results.
func (r Result) ErrorCode() errors.ErrorCode {
	if r.Err == nil {
		return ""
	}
	return r.Err.Code
}
